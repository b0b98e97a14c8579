package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Trade is a manually journaled trade owned by a single user.
type Trade struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"userId"`
	Symbol             string    `json:"symbol"`
	TradeType          string    `json:"trade_type"`
	Category           string    `json:"category"`
	Quantity           float64   `json:"quantity"`
	Price              float64   `json:"price"`
	ExitPrice          float64   `json:"exit_price"`
	PnL                float64   `json:"pnl"`
	Strategy           string    `json:"strategy"`
	Timestamp          time.Time `json:"timestamp"`
	Notes              string    `json:"notes"`
	Screenshots        []string  `json:"screenshots"`
	ScreenshotsVersion int64     `json:"-"`
}

// APITrade is a trade ingested from a connected broker account. Unlike a
// manual Trade it carries the broker ticket used for deduplication.
type APITrade struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"userId"`
	AccountID          string    `json:"account_id"`
	Platform           string    `json:"platform"`
	Symbol             string    `json:"symbol"`
	TradeType          string    `json:"trade_type"`
	Quantity           float64   `json:"quantity"`
	Price              float64   `json:"price"`
	ExitPrice          float64   `json:"exit_price"`
	PnL                float64   `json:"pnl"`
	Timestamp          time.Time `json:"timestamp"`
	Ticket             string    `json:"ticket"`
	Notes              string    `json:"notes"`
	Strategy           string    `json:"strategy"`
	Screenshots        []string  `json:"screenshots"`
	ScreenshotsVersion int64     `json:"-"`
}

// Screenshot is the image host's answer to an upload: the hosted URL plus
// the host-side handle needed to destroy the asset later. Only the URL is
// persisted; the handle is re-derived from it on deletion.
type Screenshot struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// MarshalScreenshots serializes the ordered attachment URL list for the
// denormalized screenshots column.
func MarshalScreenshots(urls []string) (string, error) {
	if len(urls) == 0 {
		return "", nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalScreenshots parses the screenshots column. Empty or corrupt
// stored values yield an empty list rather than an error, so one bad row
// never breaks a listing.
func UnmarshalScreenshots(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return []string{}
	}
	if urls == nil {
		urls = []string{}
	}
	return urls
}

// CanonicalTrade is the unified representation a bulk row or single manual
// entry is normalized into before validation and insertion. Alias handling
// happens in Normalize; validation happens against these fields only.
type CanonicalTrade struct {
	UserID      int64   `validate:"required,gt=0"`
	Symbol      string  `validate:"required,max=32"`
	TradeType   string  `validate:"required,oneof=buy sell"`
	Category    string  `validate:"required,max=32"`
	Quantity    float64 `validate:"required,gt=0"`
	Price       float64 `validate:"required,gt=0"`
	ExitPrice   float64 `validate:"required,gt=0"`
	PnL         float64
	Strategy    string    `validate:"max=1024"`
	Timestamp   time.Time `validate:"required"`
	Notes       string    `validate:"max=4096"`
	Screenshots []string
}

// TradeInput is one manual trade as submitted by a client, either alone or
// as a bulk row. Exports from different tools use different field names for
// the same value, so most fields have an alias twin; Normalize resolves
// them with the canonical name winning.
type TradeInput struct {
	UserID         int64    `json:"userId"`
	Symbol         string   `json:"symbol"`
	TradeType      string   `json:"trade_type"`
	Type           string   `json:"type"` // alias for trade_type
	Category       string   `json:"category"`
	Quantity       float64  `json:"quantity"`
	Lots           float64  `json:"lots"` // alias for quantity
	Price          float64  `json:"price"`
	OpeningPrice   float64  `json:"opening_price"` // alias for price
	ExitPrice      float64  `json:"exit_price"`
	ClosingPrice   float64  `json:"closing_price"` // alias for exit_price
	PnL            *float64 `json:"pnl"`
	ProfitUSD      *float64 `json:"profit_usd"` // alias for pnl
	Strategy       string   `json:"strategy"`
	Timestamp      string   `json:"timestamp"`
	OpeningTimeUTC string   `json:"opening_time_utc"` // alias for timestamp
	Notes          string   `json:"notes"`
	Screenshots    []string `json:"screenshots"`
}

// Normalize resolves alias fields into a canonical record. Trade types like
// "BUY LIMIT" collapse to plain buy/sell and a missing category defaults to
// forex. A missing timestamp stays zero so validation can reject the row.
func (in *TradeInput) Normalize() CanonicalTrade {
	c := CanonicalTrade{
		UserID:      in.UserID,
		Symbol:      strings.ToUpper(strings.TrimSpace(in.Symbol)),
		TradeType:   normalizeTradeType(firstNonEmpty(in.TradeType, in.Type)),
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Quantity:    firstNonZero(in.Quantity, in.Lots),
		Price:       firstNonZero(in.Price, in.OpeningPrice),
		ExitPrice:   firstNonZero(in.ExitPrice, in.ClosingPrice),
		Strategy:    strings.TrimSpace(in.Strategy),
		Notes:       in.Notes,
		Screenshots: in.Screenshots,
	}
	if c.Category == "" {
		c.Category = "forex"
	}
	if in.PnL != nil {
		c.PnL = *in.PnL
	} else if in.ProfitUSD != nil {
		c.PnL = *in.ProfitUSD
	}
	c.Timestamp = ParseTimestamp(firstNonEmpty(in.Timestamp, in.OpeningTimeUTC))
	return c
}

func normalizeTradeType(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lowered, "buy"):
		return "buy"
	case strings.Contains(lowered, "sell"):
		return "sell"
	default:
		return lowered
	}
}

// BrokerTradeInput is one trade pushed by the MT5 bridge, in the bridge's
// own field names. The account id resolves the owning user and the ticket
// deduplicates replays.
type BrokerTradeInput struct {
	AccountID  string  `json:"account_id" validate:"required"`
	Ticket     string  `json:"ticket" validate:"required"`
	Symbol     string  `json:"symbol" validate:"required,max=32"`
	Type       string  `json:"type" validate:"required"`
	Volume     float64 `json:"volume" validate:"required,gt=0"`
	EntryPrice float64 `json:"entry_price" validate:"required,gt=0"`
	ExitPrice  float64 `json:"exit_price" validate:"gte=0"`
	Profit     float64 `json:"profit"`
	CloseTime  string  `json:"close_time"`
}

// BrokerTradeResult is the per-item outcome of a broker push.
type BrokerTradeResult struct {
	Success   bool    `json:"success"`
	Symbol    string  `json:"symbol,omitempty"`
	Ticket    string  `json:"ticket,omitempty"`
	UserID    int64   `json:"userId,omitempty"`
	AccountID string  `json:"account_id,omitempty"`
	Profit    float64 `json:"profit,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// BulkTradeResult is the per-item outcome of a bulk manual save.
type BulkTradeResult struct {
	Success bool   `json:"success"`
	Trade   string `json:"trade,omitempty"`
	Error   string `json:"error,omitempty"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimestampLayout is the storage format for trade timestamps. Rows are
// written as UTC text in this layout so SQLite date functions can bucket
// them by calendar day.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders a timestamp in the storage layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts the formats exports and stored rows actually
// contain. An empty value yields the zero time so callers can treat it as
// missing; a non-empty unparseable value falls back to the ingestion time.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// ParseBrokerTimestamp parses a close time from a broker push payload.
// Bridges occasionally omit it; those rows get the ingestion time.
func ParseBrokerTimestamp(raw string) time.Time {
	if t := ParseTimestamp(raw); !t.IsZero() {
		return t
	}
	return time.Now().UTC()
}
