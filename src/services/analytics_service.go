package services

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
)

const (
	ckTradeSummary         = "agg_trade_summary_user_%d"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type analyticsServiceImpl struct {
	db          *sql.DB
	reportCache *cache.Cache
}

func NewAnalyticsService(db *sql.DB) AnalyticsService {
	return &analyticsServiceImpl{
		db:          db,
		reportCache: cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ledgerSummary aggregates one trade table for a user.
func (s *analyticsServiceImpl) ledgerSummary(table string, userID int64) (*models.LedgerSummary, error) {
	var sum models.LedgerSummary
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(pnl), 0),
		       COALESCE(SUM(CASE WHEN pnl > 0 THEN pnl ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN pnl < 0 THEN pnl ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0)
		FROM `+table+` WHERE user_id = ?`, userID).Scan(
		&sum.TotalTrades, &sum.TotalPnL, &sum.TotalProfit, &sum.TotalLoss,
		&sum.WinningTrades, &sum.LosingTrades)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// GetSummary aggregates the manual and broker ledgers independently and
// sums them. A user with no trades gets a zero summary, not an error.
func (s *analyticsServiceImpl) GetSummary(userID int64) (*models.TradeSummary, error) {
	cacheKey := fmt.Sprintf(ckTradeSummary, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		if summary, ok := cached.(*models.TradeSummary); ok {
			return summary, nil
		}
	}

	manual, err := s.ledgerSummary("trades", userID)
	if err != nil {
		return nil, err
	}
	api, err := s.ledgerSummary("api_trades", userID)
	if err != nil {
		return nil, err
	}

	summary := &models.TradeSummary{
		TotalTrades:   manual.TotalTrades + api.TotalTrades,
		TotalPnL:      round2(manual.TotalPnL + api.TotalPnL),
		TotalProfit:   round2(manual.TotalProfit + api.TotalProfit),
		TotalLoss:     round2(manual.TotalLoss + api.TotalLoss),
		WinningTrades: manual.WinningTrades + api.WinningTrades,
		LosingTrades:  manual.LosingTrades + api.LosingTrades,
		ManualTrades:  manual.TotalTrades,
		APITrades:     api.TotalTrades,
	}
	if summary.TotalTrades > 0 {
		summary.WinRate = round2(float64(summary.WinningTrades) / float64(summary.TotalTrades) * 100)
	}

	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

// GetTradesByDate lists both ledgers' trades whose timestamp falls on the
// given calendar day.
func (s *analyticsServiceImpl) GetTradesByDate(userID int64, date time.Time) (*models.TradesByDate, error) {
	day := date.Format("2006-01-02")

	manual, err := s.manualTradesOn(userID, day)
	if err != nil {
		return nil, err
	}
	api, err := s.apiTradesOn(userID, day)
	if err != nil {
		return nil, err
	}

	return &models.TradesByDate{
		Date:         day,
		ManualTrades: manual,
		APITrades:    api,
		TotalManual:  len(manual),
		TotalAPI:     len(api),
		TotalAll:     len(manual) + len(api),
	}, nil
}

func (s *analyticsServiceImpl) manualTradesOn(userID int64, day string) ([]models.Trade, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, symbol, trade_type, category, quantity, price, exit_price, pnl,
		       COALESCE(strategy, ''), timestamp, COALESCE(notes, ''), COALESCE(screenshots, ''), screenshots_version
		FROM trades
		WHERE user_id = ? AND strftime('%Y-%m-%d', timestamp) = ?
		ORDER BY timestamp DESC`, userID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		var t models.Trade
		var rawShots, rawTime string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.TradeType, &t.Category,
			&t.Quantity, &t.Price, &t.ExitPrice, &t.PnL, &t.Strategy,
			&rawTime, &t.Notes, &rawShots, &t.ScreenshotsVersion); err != nil {
			return nil, err
		}
		t.Timestamp = models.ParseTimestamp(rawTime)
		t.Screenshots = models.UnmarshalScreenshots(rawShots)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *analyticsServiceImpl) apiTradesOn(userID int64, day string) ([]models.APITrade, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, account_id, platform, symbol, trade_type, quantity, price, exit_price, pnl,
		       timestamp, ticket, COALESCE(notes, ''), COALESCE(strategy, ''), COALESCE(screenshots, ''), screenshots_version
		FROM api_trades
		WHERE user_id = ? AND strftime('%Y-%m-%d', timestamp) = ?
		ORDER BY timestamp DESC`, userID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []models.APITrade{}
	for rows.Next() {
		var t models.APITrade
		var rawShots, rawTime string
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Platform, &t.Symbol, &t.TradeType,
			&t.Quantity, &t.Price, &t.ExitPrice, &t.PnL, &rawTime, &t.Ticket,
			&t.Notes, &t.Strategy, &rawShots, &t.ScreenshotsVersion); err != nil {
			return nil, err
		}
		t.Timestamp = models.ParseTimestamp(rawTime)
		t.Screenshots = models.UnmarshalScreenshots(rawShots)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetDailyBreakdown groups the manual ledger by calendar day within the
// inclusive range, newest day first. An empty range yields an empty list.
func (s *analyticsServiceImpl) GetDailyBreakdown(userID int64, from, to time.Time) ([]models.DailyPnL, error) {
	rows, err := s.db.Query(`
		SELECT strftime('%Y-%m-%d', timestamp) AS trade_date,
		       COUNT(*),
		       COALESCE(SUM(pnl), 0),
		       COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0)
		FROM trades
		WHERE user_id = ? AND strftime('%Y-%m-%d', timestamp) BETWEEN ? AND ?
		GROUP BY trade_date
		ORDER BY trade_date DESC`,
		userID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	daily := []models.DailyPnL{}
	for rows.Next() {
		var d models.DailyPnL
		if err := rows.Scan(&d.Date, &d.TradeCount, &d.DailyPnL, &d.WinningTrades, &d.LosingTrades); err != nil {
			return nil, err
		}
		d.DailyPnL = round2(d.DailyPnL)
		daily = append(daily, d)
	}
	return daily, rows.Err()
}

func (s *analyticsServiceImpl) InvalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckTradeSummary, userID))
	logger.L.Debug("analytics cache invalidated", "userID", userID)
}
