package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedManualTrades(t *testing.T, app *testApp, userID int64) {
	t.Helper()

	for i, tc := range []struct {
		symbol string
		pnl    float64
		ts     string
	}{
		{"EURUSD", 10.0, "2025-02-01T10:00:00Z"},
		{"GBPUSD", -4.0, "2025-02-01T12:00:00Z"},
		{"XAUUSD", 6.0, "2025-02-03T10:00:00Z"},
	} {
		body := saveTradeBody(userID, tc.symbol)
		body["pnl"] = tc.pnl
		body["timestamp"] = tc.ts
		rec, _ := app.request(t, http.MethodPost, "/api/save-trade", body, nil)
		require.Equal(t, http.StatusOK, rec.Code, "trade %d", i)
	}
}

func TestTradeSummaryEndpoint(t *testing.T) {
	app := newTestApp(t)
	userID, _ := app.registerUser(t, "sumapi@example.com")
	seedManualTrades(t, app, userID)

	rec, resp := app.request(t, http.MethodGet, fmt.Sprintf("/api/trade-summary/%d", userID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := resp["summary"].(map[string]interface{})
	assert.Equal(t, float64(3), summary["total_trades"])
	assert.Equal(t, float64(12), summary["total_pnl"])
	assert.Equal(t, float64(2), summary["winning_trades"])
	assert.Equal(t, float64(1), summary["losing_trades"])
	assert.Equal(t, 66.67, summary["win_rate"])
	assert.Equal(t, float64(3), summary["manual_trades"])
	assert.Equal(t, float64(0), summary["api_trades"])
}

func TestTradesByDateEndpoint(t *testing.T) {
	app := newTestApp(t)
	userID, _ := app.registerUser(t, "dateapi@example.com")
	seedManualTrades(t, app, userID)

	rec, resp := app.request(t, http.MethodGet, fmt.Sprintf("/api/trades-by-date/%d?date=2025-02-01", userID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-02-01", resp["date"])
	assert.Equal(t, float64(2), resp["total_manual"])
	assert.Equal(t, float64(0), resp["total_api"])
	assert.Equal(t, float64(2), resp["total_all"])
}

func TestTradesByDateRequiresParameter(t *testing.T) {
	app := newTestApp(t)
	userID, _ := app.registerUser(t, "nodate@example.com")

	rec, resp := app.request(t, http.MethodGet, fmt.Sprintf("/api/trades-by-date/%d", userID), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Date parameter required (YYYY-MM-DD format)", resp["error"])

	rec, resp = app.request(t, http.MethodGet, fmt.Sprintf("/api/trades-by-date/%d?date=01-02-2025", userID), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Invalid date format. Use YYYY-MM-DD", resp["error"])
}

func TestTradesByDateRangeEndpoint(t *testing.T) {
	app := newTestApp(t)
	userID, _ := app.registerUser(t, "rangeapi@example.com")
	seedManualTrades(t, app, userID)

	rec, resp := app.request(t, http.MethodGet,
		fmt.Sprintf("/api/trades-by-date-range/%d?start_date=2025-02-01&end_date=2025-02-28", userID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), resp["total_days"])
	daily := resp["daily_data"].([]interface{})
	require.Len(t, daily, 2)
	first := daily[0].(map[string]interface{})
	assert.Equal(t, "2025-02-03", first["trade_date"])
}

func TestTradesByDateRangeEmptyRange(t *testing.T) {
	app := newTestApp(t)
	userID, _ := app.registerUser(t, "emptyapi@example.com")

	rec, resp := app.request(t, http.MethodGet,
		fmt.Sprintf("/api/trades-by-date-range/%d?start_date=2030-01-01&end_date=2030-01-31", userID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(0), resp["total_days"])

	rec, resp = app.request(t, http.MethodGet,
		fmt.Sprintf("/api/trades-by-date-range/%d?start_date=2030-01-01", userID), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "start_date and end_date parameters required", resp["error"])
}
