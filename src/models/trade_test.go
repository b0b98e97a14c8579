package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalFieldsWin(t *testing.T) {
	pnl := 12.5
	profitUSD := 99.9
	in := TradeInput{
		UserID:       7,
		Symbol:       " eurusd ",
		TradeType:    "buy",
		Type:         "sell",
		Quantity:     0.5,
		Lots:         2.0,
		Price:        1.1,
		OpeningPrice: 9.9,
		ExitPrice:    1.2,
		ClosingPrice: 8.8,
		PnL:          &pnl,
		ProfitUSD:    &profitUSD,
		Timestamp:    "2025-03-01T10:00:00Z",
	}

	c := in.Normalize()
	assert.Equal(t, int64(7), c.UserID)
	assert.Equal(t, "EURUSD", c.Symbol)
	assert.Equal(t, "buy", c.TradeType)
	assert.Equal(t, 0.5, c.Quantity)
	assert.Equal(t, 1.1, c.Price)
	assert.Equal(t, 1.2, c.ExitPrice)
	assert.Equal(t, 12.5, c.PnL)
	assert.Equal(t, "forex", c.Category)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), c.Timestamp)
}

func TestNormalizeAliasFallback(t *testing.T) {
	profitUSD := -4.2
	in := TradeInput{
		UserID:         3,
		Symbol:         "gbpjpy",
		Type:           "SELL STOP",
		Lots:           0.25,
		OpeningPrice:   190.5,
		ClosingPrice:   189.9,
		ProfitUSD:      &profitUSD,
		OpeningTimeUTC: "2025-03-02 14:30:00",
	}

	c := in.Normalize()
	assert.Equal(t, "sell", c.TradeType)
	assert.Equal(t, 0.25, c.Quantity)
	assert.Equal(t, 190.5, c.Price)
	assert.Equal(t, 189.9, c.ExitPrice)
	assert.Equal(t, -4.2, c.PnL)
	assert.Equal(t, "2025-03-02", c.Timestamp.Format("2006-01-02"))
}

func TestNormalizeTradeTypeCollapse(t *testing.T) {
	cases := map[string]string{
		"BUY":        "buy",
		"Buy Limit":  "buy",
		"sell stop":  "sell",
		"SELL":       "sell",
		"hold":       "hold",
		"  Buy Stop": "buy",
	}
	for raw, want := range cases {
		in := TradeInput{TradeType: raw}
		assert.Equal(t, want, in.Normalize().TradeType, "raw=%q", raw)
	}
}

func TestNormalizeMissingTimestampStaysZero(t *testing.T) {
	in := TradeInput{UserID: 1, Symbol: "XAUUSD"}
	c := in.Normalize()
	assert.True(t, c.Timestamp.IsZero())
}

func TestFormatTimestampStorageLayout(t *testing.T) {
	ts := time.Date(2025, 2, 5, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-05 09:00:00", FormatTimestamp(ts))

	// Round-trips through the storage text without drift.
	assert.Equal(t, ts, ParseTimestamp(FormatTimestamp(ts)))
}

func TestParseBrokerTimestampLayouts(t *testing.T) {
	for _, raw := range []string{
		"2025-01-15T08:30:00Z",
		"2025-01-15T08:30:00",
		"2025-01-15 08:30:00",
	} {
		ts := ParseBrokerTimestamp(raw)
		assert.Equal(t, "2025-01-15", ts.Format("2006-01-02"), "raw=%q", raw)
	}

	dateOnly := ParseBrokerTimestamp("2025-01-15")
	assert.Equal(t, "2025-01-15", dateOnly.Format("2006-01-02"))

	garbage := ParseBrokerTimestamp("not a time")
	assert.WithinDuration(t, time.Now().UTC(), garbage, 5*time.Second)
}

func TestScreenshotsRoundTrip(t *testing.T) {
	urls := []string{"https://res.cloudinary.com/demo/image/upload/v1/a.png", "https://res.cloudinary.com/demo/image/upload/v1/b.png"}

	raw, err := MarshalScreenshots(urls)
	require.NoError(t, err)
	assert.Equal(t, urls, UnmarshalScreenshots(raw))

	empty, err := MarshalScreenshots(nil)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
	assert.Equal(t, []string{}, UnmarshalScreenshots(empty))
}

func TestUnmarshalScreenshotsCorruptValue(t *testing.T) {
	assert.Equal(t, []string{}, UnmarshalScreenshots("{not json"))
	assert.Equal(t, []string{}, UnmarshalScreenshots("null"))
	assert.Equal(t, []string{}, UnmarshalScreenshots("   "))
}
