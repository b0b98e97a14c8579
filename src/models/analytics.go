package models

// LedgerSummary is the per-ledger aggregate; manual and broker ledgers are
// summarized independently and then summed.
type LedgerSummary struct {
	TotalTrades   int
	TotalPnL      float64
	TotalProfit   float64
	TotalLoss     float64
	WinningTrades int
	LosingTrades  int
}

// TradeSummary is the combined per-user aggregate across both ledgers.
// WinRate is winning/total as a percentage rounded to two decimals, 0 when
// the user has no trades.
type TradeSummary struct {
	TotalTrades   int     `json:"total_trades"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalProfit   float64 `json:"total_profit"`
	TotalLoss     float64 `json:"total_loss"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	ManualTrades  int     `json:"manual_trades"`
	APITrades     int     `json:"api_trades"`
}

// TradesByDate lists both ledgers' trades for one calendar day.
type TradesByDate struct {
	Date         string     `json:"date"`
	ManualTrades []Trade    `json:"manual_trades"`
	APITrades    []APITrade `json:"api_trades"`
	TotalManual  int        `json:"total_manual"`
	TotalAPI     int        `json:"total_api"`
	TotalAll     int        `json:"total_all"`
}

// DailyPnL is one calendar day's aggregate within a date-range query.
type DailyPnL struct {
	Date          string  `json:"trade_date"`
	TradeCount    int     `json:"trade_count"`
	DailyPnL      float64 `json:"daily_pnl"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
}
