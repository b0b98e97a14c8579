package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
	"github.com/username/tradeanalytics/backend/src/services"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type TradeHandler struct {
	tradeService services.TradeService
}

func NewTradeHandler(tradeService services.TradeService) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

// userIDFromRequest resolves the caller-identified user id for the ledger
// surface: user-id header, then query string, then request body.
func userIDFromRequest(r *http.Request, bodyUserID int64) int64 {
	if v := r.Header.Get("user-id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	if v := r.URL.Query().Get("userId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return bodyUserID
}

func (h *TradeHandler) HandleSaveTrade(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var input models.TradeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}

	trade, err := h.tradeService.SaveTrade(input)
	if err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	ctxLogger.Info("manual trade saved", "userID", trade.UserID, "tradeID", trade.ID, "symbol", trade.Symbol)
	utils.SendJSON(w, map[string]interface{}{
		"success":         true,
		"message":         "Manual trade saved!",
		"screenshotCount": len(trade.Screenshots),
	})
}

type bulkTradesRequest struct {
	Trades []models.TradeInput `json:"trades"`
}

func (h *TradeHandler) HandleSaveBulkTrades(w http.ResponseWriter, r *http.Request) {
	var req bulkTradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid trades data")
		return
	}

	result, err := h.tradeService.SaveTradesBulk(req.Trades)
	if err != nil {
		if errors.Is(err, services.ErrBatchTooLarge) {
			utils.SendFailure(w, fmt.Sprintf("Too many trades. Maximum %d trades per request.", services.MaxBulkTrades))
			return
		}
		utils.SendFailure(w, "Invalid trades data")
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Processed %d trades: %d successful, %d failed",
			len(req.Trades), result.SavedCount, result.ErrorCount),
		"savedCount": result.SavedCount,
		"errorCount": result.ErrorCount,
		"results":    result.Results,
	})
}

// decodeBrokerTrades reads a broker push payload. The bridge may post a
// single object or an array; both are accepted.
func decodeBrokerTrades(body io.Reader) ([]models.BrokerTradeInput, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var inputs []models.BrokerTradeInput
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, err
		}
		return inputs, nil
	}
	var single models.BrokerTradeInput
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []models.BrokerTradeInput{single}, nil
}

// HandleSaveAPITrade ingests broker-pushed trades.
func (h *TradeHandler) HandleSaveAPITrade(w http.ResponseWriter, r *http.Request) {
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

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Processed %d trades: %d saved, %d skipped, %d failed",
			len(inputs), result.SavedCount, result.SkippedCount, result.ErrorCount),
		"savedCount":   result.SavedCount,
		"skippedCount": result.SkippedCount,
		"errorCount":   result.ErrorCount,
		"results":      result.Results,
	})
}

func (h *TradeHandler) HandleGetUserTrades(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userid"), 10, 64)
	if err != nil {
		utils.SendFailure(w, "Invalid user id")
		return
	}

	trades, err := h.tradeService.GetTrades(userID)
	if err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"trades":  trades,
		"count":   len(trades),
	})
}

func (h *TradeHandler) HandleGetUserAPITrades(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userid"), 10, 64)
	if err != nil {
		utils.SendFailure(w, "Invalid user id")
		return
	}

	trades, err := h.tradeService.GetAPITrades(userID)
	if err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"trades":  trades,
		"count":   len(trades),
	})
}

type deleteTradeRequest struct {
	UserID int64 `json:"userId"`
}

func (h *TradeHandler) deleteTrade(w http.ResponseWriter, r *http.Request, ledger services.Ledger) {
	ctxLogger := logger.FromContext(r.Context())

	tradeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}

	var req deleteTradeRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	userID := userIDFromRequest(r, req.UserID)
	if userID == 0 {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}

	var symbol string
	var message string
	if ledger == services.LedgerManual {
		symbol, err = h.tradeService.DeleteTrade(userID, tradeID)
		message = "Trade deleted successfully"
	} else {
		symbol, err = h.tradeService.DeleteAPITrade(userID, tradeID)
		message = "API Trade deleted successfully"
	}
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "Trade not found or unauthorized")
			return
		}
		utils.SendFailure(w, err.Error())
		return
	}

	ctxLogger.Info("trade deleted", "userID", userID, "tradeID", tradeID, "ledger", ledger)
	utils.SendJSON(w, map[string]interface{}{
		"success":   true,
		"message":   message,
		"deletedId": tradeID,
		"symbol":    symbol,
	})
}

func (h *TradeHandler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	h.deleteTrade(w, r, services.LedgerManual)
}

func (h *TradeHandler) HandleDeleteAPITrade(w http.ResponseWriter, r *http.Request) {
	h.deleteTrade(w, r, services.LedgerBroker)
}

type updateNoteRequest struct {
	TradeID int64  `json:"tradeId"`
	UserID  int64  `json:"userId"`
	Notes   string `json:"notes"`
}

func (h *TradeHandler) updateNote(w http.ResponseWriter, r *http.Request, ledger services.Ledger) {
	var req updateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.TradeID == 0 || req.UserID == 0 {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}

	symbol, err := h.tradeService.UpdateNotes(req.UserID, req.TradeID, ledger, req.Notes)
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "Trade not found or unauthorized")
			return
		}
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Trade notes updated!",
		"tradeId": req.TradeID,
		"symbol":  symbol,
	})
}

func (h *TradeHandler) HandleUpdateTradeNote(w http.ResponseWriter, r *http.Request) {
	h.updateNote(w, r, services.LedgerManual)
}

type updateAPINoteRequest struct {
	Ticket string `json:"ticket"`
	UserID int64  `json:"userId"`
	Notes  string `json:"notes"`
}

// HandleUpdateAPITradeNote updates a broker trade's notes. Broker rows are
// addressed by ticket, the identifier the MT5 bridge pushes.
func (h *TradeHandler) HandleUpdateAPITradeNote(w http.ResponseWriter, r *http.Request) {
	var req updateAPINoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.Ticket == "" || req.UserID == 0 {
		utils.SendFailure(w, "Ticket and User ID required")
		return
	}

	symbol, err := h.tradeService.UpdateAPITradeNotes(req.UserID, req.Ticket, req.Notes)
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "API Trade not found or unauthorized")
			return
		}
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "API trade note updated!",
		"ticket":  req.Ticket,
		"symbol":  symbol,
	})
}

type updateStrategyRequest struct {
	TradeID  int64  `json:"tradeId"`
	UserID   int64  `json:"userId"`
	Strategy string `json:"strategy"`
}

func (h *TradeHandler) updateStrategy(w http.ResponseWriter, r *http.Request, ledger services.Ledger) {
	var req updateStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.TradeID == 0 || req.UserID == 0 {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}

	symbol, err := h.tradeService.UpdateStrategy(req.UserID, req.TradeID, ledger, req.Strategy)
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "Trade not found or unauthorized")
			return
		}
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Trade strategy updated!",
		"tradeId": req.TradeID,
		"symbol":  symbol,
	})
}

func (h *TradeHandler) HandleUpdateTradeStrategy(w http.ResponseWriter, r *http.Request) {
	h.updateStrategy(w, r, services.LedgerManual)
}

type updateAPIStrategyRequest struct {
	Ticket   string `json:"ticket"`
	UserID   int64  `json:"userId"`
	Strategy string `json:"strategy"`
}

// HandleUpdateAPITradeStrategy updates a broker trade's strategy by ticket.
func (h *TradeHandler) HandleUpdateAPITradeStrategy(w http.ResponseWriter, r *http.Request) {
	var req updateAPIStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.Ticket == "" || req.UserID == 0 {
		utils.SendFailure(w, "Ticket and User ID required")
		return
	}

	symbol, err := h.tradeService.UpdateAPITradeStrategy(req.UserID, req.Ticket, req.Strategy)
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "API Trade not found or unauthorized")
			return
		}
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success":  true,
		"message":  "API trade strategy updated successfully!",
		"ticket":   req.Ticket,
		"symbol":   symbol,
		"strategy": req.Strategy,
	})
}

// HandleGetTradeWithScreenshots returns one manual trade with its parsed
// attachment list.
func (h *TradeHandler) HandleGetTradeWithScreenshots(w http.ResponseWriter, r *http.Request) {
	tradeID, err := strconv.ParseInt(chi.URLParam(r, "tradeId"), 10, 64)
	if err != nil {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}
	userID := userIDFromRequest(r, 0)
	if userID == 0 {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}

	trade, err := h.tradeService.GetTradeWithScreenshots(userID, tradeID)
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "Trade not found or unauthorized")
			return
		}
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success":         true,
		"trade":           trade,
		"screenshotCount": len(trade.Screenshots),
	})
}
