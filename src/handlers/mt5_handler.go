package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
	"github.com/username/tradeanalytics/backend/src/services"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type MT5Handler struct {
	mt5Service   services.MT5Service
	tradeService services.TradeService
}

func NewMT5Handler(mt5Service services.MT5Service, tradeService services.TradeService) *MT5Handler {
	return &MT5Handler{mt5Service: mt5Service, tradeService: tradeService}
}

type saveCredentialsRequest struct {
	UserID           int64  `json:"user_id"`
	BrokerName       string `json:"broker_name"`
	AccountID        string `json:"account_id"`
	ServerName       string `json:"server_name"`
	InvestorPassword string `json:"investor_password"`
}

func (h *MT5Handler) HandleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req saveCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.UserID == 0 || req.BrokerName == "" || req.AccountID == "" || req.ServerName == "" || req.InvestorPassword == "" {
		utils.SendFailure(w, "All fields required")
		return
	}

	_, err := h.mt5Service.SaveCredentials(req.UserID, models.MT5CredentialsInput{
		BrokerName:       req.BrokerName,
		AccountID:        req.AccountID,
		ServerName:       req.ServerName,
		InvestorPassword: req.InvestorPassword,
	})
	if err != nil {
		if errors.Is(err, services.ErrAccountExists) {
			utils.SendFailure(w, "This MT5 account already exists")
			return
		}
		ctxLogger.Error("failed to save broker credentials", "userID", req.UserID, "error", err)
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "MT5 credentials saved successfully!",
	})
}

type testConnectionRequest struct {
	UserID           int64  `json:"user_id"`
	AccountID        string `json:"account_id"`
	InvestorPassword string `json:"investor_password"`
}

func (h *MT5Handler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.UserID == 0 || req.AccountID == "" || req.InvestorPassword == "" {
		utils.SendFailure(w, "Required fields missing")
		return
	}

	_, err := h.mt5Service.TestConnection(req.UserID, req.AccountID, req.InvestorPassword)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			utils.SendFailure(w, "MT5 account not found. Save credentials first.")
		case errors.Is(err, services.ErrBadInvestorPass):
			utils.SendFailure(w, "Invalid investor password")
		default:
			utils.SendFailure(w, err.Error())
		}
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Connected to MT5 successfully!",
	})
}

// HandleReceiveTrades ingests a push from the terminal bridge. It takes the
// same payload shape as save-api-trade and persists through the same path,
// so a bridge can point at either endpoint.
func (h *MT5Handler) HandleReceiveTrades(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	inputs, err := decodeBrokerTrades(r.Body)
	if err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}

	result, err := h.tradeService.IngestBrokerTrades(inputs)
	if err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	ctxLogger.Info("MT5 trades received", "count", len(inputs), "saved", result.SavedCount,
		"skipped", result.SkippedCount, "failed", result.ErrorCount)
	utils.SendJSON(w, map[string]interface{}{
		"success":      true,
		"message":      "MT5 trades received successfully",
		"count":        len(inputs),
		"savedCount":   result.SavedCount,
		"skippedCount": result.SkippedCount,
		"errorCount":   result.ErrorCount,
		"results":      result.Results,
	})
}
