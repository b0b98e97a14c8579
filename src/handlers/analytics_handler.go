package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/tradeanalytics/backend/src/security/validation"
	"github.com/username/tradeanalytics/backend/src/services"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type AnalyticsHandler struct {
	analyticsService services.AnalyticsService
}

func NewAnalyticsHandler(analyticsService services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

func (h *AnalyticsHandler) HandleTradeSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userid"), 10, 64)
	if err != nil {
		utils.SendFailure(w, "Invalid user id")
		return
	}

	summary, err := h.analyticsService.GetSummary(userID)
	if err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"summary": summary,
	})
}

// HandleTradesByDate lists both ledgers' trades for one calendar day.
// The date is validated strictly before any query runs.
func (h *AnalyticsHandler) HandleTradesByDate(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userid"), 10, 64)
	if err != nil {
		utils.SendFailure(w, "Invalid user id")
		return
	}

	rawDate := r.URL.Query().Get("date")
	if rawDate == "" {
		utils.SendFailure(w, "Date parameter required (YYYY-MM-DD format)")
		return
	}
	date, err := validation.ValidateISODate(rawDate, "date")
	if err != nil {
		utils.SendFailure(w, "Invalid date format. Use YYYY-MM-DD")
		return
	}

	result, err := h.analyticsService.GetTradesByDate(userID, date)
	if err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success":       true,
		"date":          result.Date,
		"manual_trades": result.ManualTrades,
		"api_trades":    result.APITrades,
		"total_manual":  result.TotalManual,
		"total_api":     result.TotalAPI,
		"total_all":     result.TotalAll,
	})
}

// HandleTradesByDateRange returns the per-day breakdown for an inclusive
// date range. An empty range is a valid, empty answer.
func (h *AnalyticsHandler) HandleTradesByDateRange(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userid"), 10, 64)
	if err != nil {
		utils.SendFailure(w, "Invalid user id")
		return
	}

	rawStart := r.URL.Query().Get("start_date")
	rawEnd := r.URL.Query().Get("end_date")
	if rawStart == "" || rawEnd == "" {
		utils.SendFailure(w, "start_date and end_date parameters required")
		return
	}

	start, err := validation.ValidateISODate(rawStart, "start_date")
	if err != nil {
		utils.SendFailure(w, "Invalid start_date format. Use YYYY-MM-DD")
		return
	}
	end, err := validation.ValidateISODate(rawEnd, "end_date")
	if err != nil {
		utils.SendFailure(w, "Invalid end_date format. Use YYYY-MM-DD")
		return
	}

	daily, err := h.analyticsService.GetDailyBreakdown(userID, start, end)
	if err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success":    true,
		"start_date": rawStart,
		"end_date":   rawEnd,
		"daily_data": daily,
		"total_days": len(daily),
	})
}
