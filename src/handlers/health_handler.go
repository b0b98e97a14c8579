package handlers

import (
	"net/http"

	"github.com/username/tradeanalytics/backend/src/utils"
)

// HandleHealth is the liveness probe. It doubles as the endpoint catalog
// clients use to discover the API surface.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Server is running!",
		"endpoints": []string{
			"POST /api/register",
			"POST /api/login",
			"POST /api/logout",
			"POST /api/update-profile",
			"POST /api/update-password",
			"POST /api/update-account-type",
			"POST /api/update-currency",
			"GET  /api/user-profile",
			"DELETE /api/delete-account",
			"POST /api/admin/restore-user/{userId}",

			"POST /api/save-trade",
			"POST /api/save-bulk-trades",
			"POST /api/save-api-trade",
			"GET  /api/user-trades/{userid}",
			"GET  /api/user-api-trades/{userid}",
			"DELETE /api/trades/{id}",
			"DELETE /api/api-trades/{id}",
			"GET  /api/trade-summary/{userid}",

			"GET  /api/trades-by-date/{userid}?date=YYYY-MM-DD",
			"GET  /api/trades-by-date-range/{userid}?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD",
			"POST /api/update-trade-note",
			"POST /api/update-api-trade-note",
			"POST /api/update-trade-strategy",
			"POST /api/update-api-trade-strategy",

			"POST /api/upload-screenshot",
			"POST /api/upload-api-screenshot",
			"POST /api/update-trade-screenshots",
			"DELETE /api/trade-screenshot",
			"DELETE /api/api-trade-screenshot",
			"GET  /api/trade-with-screenshots/{tradeId}",

			"POST /api/forgot-password",
			"POST /api/reset-password",

			"POST /api/save-mt5-credentials",
			"POST /api/test-mt5-connection",
			"POST /api/mt5/receive-trades",
		},
	})
}
