package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/tradeanalytics/backend/src/config"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/model"
	"github.com/username/tradeanalytics/backend/src/security"
	"github.com/username/tradeanalytics/backend/src/services"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type PasswordHandler struct {
	db           *sql.DB
	authService  *security.AuthService
	emailService services.EmailService
	resetExpiry  time.Duration
}

func NewPasswordHandler(db *sql.DB, authService *security.AuthService, emailService services.EmailService, resetExpiry time.Duration) *PasswordHandler {
	return &PasswordHandler{
		db:           db,
		authService:  authService,
		emailService: emailService,
		resetExpiry:  resetExpiry,
	}
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword issues a short-lived reset token and mails the
// reset link. An unknown email gets the same success response as a known
// one, so the endpoint cannot be used to probe for accounts.
func (h *PasswordHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := model.GetUserByEmail(h.db, email)
	if err != nil {
		utils.SendJSON(w, map[string]interface{}{
			"success": true,
			"message": "If email exists, reset link will be sent",
		})
		return
	}

	token, err := generateResetToken()
	if err != nil {
		utils.SendFailure(w, "Failed to send email")
		return
	}
	if err := user.SetPasswordResetToken(h.db, token, time.Now().Add(h.resetExpiry)); err != nil {
		ctxLogger.Error("failed to store reset token", "userID", user.ID, "error", err)
		utils.SendFailure(w, "Failed to send email")
		return
	}

	resetLink := fmt.Sprintf("%s/reset-password.html?token=%s", config.Cfg.FrontendBaseURL, token)
	if err := h.emailService.SendPasswordResetEmail(user.Email, resetLink); err != nil {
		utils.SendFailure(w, "Failed to send email")
		return
	}

	ctxLogger.Info("password reset email issued", "userID", user.ID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Password reset link sent to your email",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// HandleResetPassword consumes a reset token. The token is single use:
// storing the new password clears it.
func (h *PasswordHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if len(req.NewPassword) < 6 {
		utils.SendFailure(w, "Password must be at least 6 characters long")
		return
	}

	user, err := model.GetUserByResetToken(h.db, req.Token)
	if err != nil {
		utils.SendFailure(w, "Invalid or expired reset link")
		return
	}

	hash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		utils.SendFailure(w, "Server error")
		return
	}
	if err := user.UpdatePassword(h.db, hash); err != nil {
		utils.SendFailure(w, "Server error")
		return
	}

	ctxLogger.Info("password reset completed", "userID", user.ID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Password reset successful!",
	})
}

type updatePasswordRequest struct {
	UserID          int64  `json:"userId"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleUpdatePassword changes a password after verifying the current one.
func (h *PasswordHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.UserID == 0 || req.CurrentPassword == "" || req.NewPassword == "" {
		utils.SendFailure(w, "All fields required")
		return
	}
	if len(req.NewPassword) < 6 {
		utils.SendFailure(w, "Password must be at least 6 characters long")
		return
	}

	user, err := model.GetUserByID(h.db, req.UserID)
	if err != nil {
		utils.SendFailure(w, "User not found")
		return
	}
	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		utils.SendFailure(w, "Current password is incorrect")
		return
	}

	hash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		utils.SendFailure(w, "Server error")
		return
	}
	if err := user.UpdatePassword(h.db, hash); err != nil {
		ctxLogger.Error("password update failed", "userID", req.UserID, "error", err)
		utils.SendFailure(w, err.Error())
		return
	}

	ctxLogger.Info("password updated", "userID", req.UserID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Password updated successfully!",
	})
}
