package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/username/tradeanalytics/backend/src/config"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/security/validation"
	"github.com/username/tradeanalytics/backend/src/services"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type ScreenshotHandler struct {
	screenshotService services.ScreenshotService
}

func NewScreenshotHandler(screenshotService services.ScreenshotService) *ScreenshotHandler {
	return &ScreenshotHandler{screenshotService: screenshotService}
}

// screenshotUpload stages the multipart image and verifies it really is an
// image. Callers must Close the returned file; the staged multipart payload
// is cleaned up when the request finishes. A false return means the failure
// response was already sent.
func screenshotUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendFailure(w, "No file uploaded")
		return nil, nil, false
	}

	file, header, err := r.FormFile("screenshot")
	if err != nil {
		utils.SendFailure(w, "No file uploaded")
		return nil, nil, false
	}

	if err := validation.ValidateClientContentType(header.Header.Get("Content-Type")); err != nil {
		file.Close()
		utils.SendFailure(w, err.Error())
		return nil, nil, false
	}
	if _, err := validation.ValidateImageContentByMagicBytes(file); err != nil {
		file.Close()
		utils.SendFailure(w, err.Error())
		return nil, nil, false
	}
	return file, header, true
}

// HandleUploadScreenshot attaches a multipart image to a manual trade.
func (h *ScreenshotHandler) HandleUploadScreenshot(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	file, header, ok := screenshotUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	tradeID, _ := strconv.ParseInt(r.FormValue("tradeId"), 10, 64)
	userID, _ := strconv.ParseInt(r.FormValue("userId"), 10, 64)
	if tradeID == 0 || userID == 0 {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}

	state, err := h.screenshotService.AttachScreenshot(r.Context(), userID, tradeID, services.LedgerManual, file, header.Filename)
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "Trade not found or unauthorized")
			return
		}
		ctxLogger.Error("screenshot upload failed", "userID", userID, "tradeID", tradeID, "error", err)
		utils.SendFailure(w, err.Error())
		return
	}

	ctxLogger.Info("screenshot uploaded", "userID", userID, "tradeID", tradeID, "count", len(state.Screenshots))
	utils.SendJSON(w, map[string]interface{}{
		"success":         true,
		"message":         "Screenshot uploaded successfully!",
		"screenshotUrl":   state.Screenshots[len(state.Screenshots)-1],
		"tradeId":         state.TradeID,
		"symbol":          state.Symbol,
		"screenshotCount": len(state.Screenshots),
		"screenshots":     state.Screenshots,
	})
}

// HandleUploadAPIScreenshot attaches an image to a broker trade. Broker
// rows are addressed by ticket, not row id.
func (h *ScreenshotHandler) HandleUploadAPIScreenshot(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	file, header, ok := screenshotUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	ticket := r.FormValue("ticket")
	userID, _ := strconv.ParseInt(r.FormValue("userId"), 10, 64)
	if ticket == "" || userID == 0 {
		utils.SendFailure(w, "Ticket and User ID required")
		return
	}

	state, err := h.screenshotService.AttachScreenshotByTicket(r.Context(), userID, ticket, file, header.Filename)
	if err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendFailure(w, "API Trade not found or unauthorized")
			return
		}
		ctxLogger.Error("screenshot upload failed", "userID", userID, "ticket", ticket, "error", err)
		utils.SendFailure(w, err.Error())
		return
	}

	ctxLogger.Info("screenshot uploaded", "userID", userID, "ticket", ticket, "count", len(state.Screenshots))
	utils.SendJSON(w, map[string]interface{}{
		"success":         true,
		"message":         "API trade screenshot uploaded successfully!",
		"screenshotUrl":   state.Screenshots[len(state.Screenshots)-1],
		"ticket":          state.Ticket,
		"symbol":          state.Symbol,
		"screenshotCount": len(state.Screenshots),
		"screenshots":     state.Screenshots,
	})
}

type deleteScreenshotRequest struct {
	TradeID       int64  `json:"tradeId"`
	UserID        int64  `json:"userId"`
	ScreenshotURL string `json:"screenshotUrl"`
}

func (h *ScreenshotHandler) HandleDeleteScreenshot(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req deleteScreenshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.TradeID == 0 || req.UserID == 0 || req.ScreenshotURL == "" {
		utils.SendFailure(w, "Trade ID, Screenshot URL and User ID required")
		return
	}

	state, err := h.screenshotService.RemoveScreenshot(r.Context(), req.UserID, req.TradeID, services.LedgerManual, req.ScreenshotURL)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTradeNotFound):
			utils.SendFailure(w, "Trade not found or unauthorized")
		case errors.Is(err, services.ErrScreenshotNotFound):
			utils.SendFailure(w, "Screenshot not found for this trade")
		default:
			utils.SendFailure(w, err.Error())
		}
		return
	}

	ctxLogger.Info("screenshot deleted", "userID", req.UserID, "tradeID", req.TradeID)
	utils.SendJSON(w, map[string]interface{}{
		"success":                  true,
		"message":                  "Screenshot deleted successfully!",
		"tradeId":                  state.TradeID,
		"symbol":                   state.Symbol,
		"deletedScreenshot":        req.ScreenshotURL,
		"remainingScreenshotCount": len(state.Screenshots),
		"screenshots":              state.Screenshots,
	})
}

type deleteAPIScreenshotRequest struct {
	Ticket        string `json:"ticket"`
	UserID        int64  `json:"userId"`
	ScreenshotURL string `json:"screenshotUrl"`
}

// HandleDeleteAPIScreenshot unlinks a broker trade's screenshot by ticket.
func (h *ScreenshotHandler) HandleDeleteAPIScreenshot(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req deleteAPIScreenshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.Ticket == "" || req.UserID == 0 || req.ScreenshotURL == "" {
		utils.SendFailure(w, "Ticket, Screenshot URL and User ID required")
		return
	}

	state, err := h.screenshotService.RemoveScreenshotByTicket(r.Context(), req.UserID, req.Ticket, req.ScreenshotURL)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTradeNotFound):
			utils.SendFailure(w, "API Trade not found or unauthorized")
		case errors.Is(err, services.ErrScreenshotNotFound):
			utils.SendFailure(w, "Screenshot not found for this trade")
		default:
			utils.SendFailure(w, err.Error())
		}
		return
	}

	ctxLogger.Info("screenshot deleted", "userID", req.UserID, "ticket", req.Ticket)
	utils.SendJSON(w, map[string]interface{}{
		"success":                  true,
		"message":                  "API trade screenshot deleted successfully!",
		"ticket":                   state.Ticket,
		"symbol":                   state.Symbol,
		"deletedScreenshot":        req.ScreenshotURL,
		"remainingScreenshotCount": len(state.Screenshots),
		"screenshots":              state.Screenshots,
	})
}

type updateScreenshotsRequest struct {
	TradeID     int64    `json:"tradeId"`
	UserID      int64    `json:"userId"`
	Action      string   `json:"action"`
	Screenshots []string `json:"screenshots"`
}

// HandleUpdateTradeScreenshots applies a bulk mutation (add, replace,
// delete, clear) to a manual trade's attachment list.
func (h *ScreenshotHandler) HandleUpdateTradeScreenshots(w http.ResponseWriter, r *http.Request) {
	var req updateScreenshotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.TradeID == 0 || req.UserID == 0 {
		utils.SendFailure(w, "Trade ID and User ID required")
		return
	}
	action := services.ScreenshotAction(req.Action)
	if req.Action == "" {
		action = services.ScreenshotAdd
	}

	state, err := h.screenshotService.UpdateScreenshots(r.Context(), req.UserID, req.TradeID, services.LedgerManual, action, req.Screenshots)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTradeNotFound):
			utils.SendFailure(w, "Trade not found or unauthorized")
		case errors.Is(err, services.ErrValidationFailed):
			utils.SendFailure(w, "Invalid action or screenshots data")
		default:
			utils.SendFailure(w, err.Error())
		}
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success":         true,
		"message":         "Trade screenshots " + string(action) + "ed successfully!",
		"tradeId":         state.TradeID,
		"symbol":          state.Symbol,
		"screenshotCount": len(state.Screenshots),
		"screenshots":     state.Screenshots,
	})
}
