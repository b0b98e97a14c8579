package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/model"
	"github.com/username/tradeanalytics/backend/src/security"
	"github.com/username/tradeanalytics/backend/src/security/validation"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type UserHandler struct {
	db          *sql.DB
	authService *security.AuthService
}

func NewUserHandler(db *sql.DB, authService *security.AuthService) *UserHandler {
	return &UserHandler{db: db, authService: authService}
}

func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendAuthError(w, "Authentication required")
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		utils.SendJSONError(w, "Failed to fetch profile", http.StatusInternalServerError)
		return
	}

	payload := userPayload(user)
	payload["createdAt"] = user.CreatedAt
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"user":    payload,
	})
}

type updateProfileRequest struct {
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Password          string `json:"password"`
	PreferredCurrency string `json:"preferred_currency"`
}

// HandleUpdateProfile applies a partial profile update. Omitted fields keep
// their stored values; email and phone changes are checked for conflicts
// with other non-deleted accounts before any write.
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendAuthError(w, "Authentication required")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Password != "" && len(strings.TrimSpace(req.Password)) < 6 {
		utils.SendJSONError(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(req.PreferredCurrency); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Email != "" && req.Email != user.Email {
		if inUse, err := model.EmailInUse(h.db, req.Email, userID); err != nil {
			utils.SendJSONError(w, "Profile update failed", http.StatusInternalServerError)
			return
		} else if inUse {
			utils.SendJSONError(w, "Email already exists", http.StatusBadRequest)
			return
		}
	}
	if req.Phone != "" && req.Phone != user.Phone {
		if inUse, err := model.PhoneInUse(h.db, req.Phone, userID); err != nil {
			utils.SendJSONError(w, "Profile update failed", http.StatusInternalServerError)
			return
		} else if inUse {
			utils.SendJSONError(w, "Phone number already exists", http.StatusBadRequest)
			return
		}
	}

	var passwordHash string
	if req.Password != "" {
		passwordHash, err = h.authService.HashPassword(strings.TrimSpace(req.Password))
		if err != nil {
			utils.SendJSONError(w, "Profile update failed", http.StatusInternalServerError)
			return
		}
	}

	update := model.ProfileUpdate{
		FirstName:         validation.SanitizeText(req.FirstName),
		LastName:          validation.SanitizeText(req.LastName),
		Email:             req.Email,
		Phone:             req.Phone,
		PasswordHash:      passwordHash,
		PreferredCurrency: req.PreferredCurrency,
	}
	if err := user.UpdateProfile(h.db, update); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		ctxLogger.Error("profile update failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Profile update failed", http.StatusInternalServerError)
		return
	}

	message := "Profile updated!"
	if req.Password != "" {
		message += " Password updated."
	}
	if req.PreferredCurrency != "" {
		message += fmt.Sprintf(" Currency updated to %s.", user.PreferredCurrency)
	}

	ctxLogger.Info("profile updated", "userID", userID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": message,
		"user":    userPayload(user),
	})
}

type updateCurrencyRequest struct {
	Currency string `json:"currency"`
}

func (h *UserHandler) HandleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendAuthError(w, "Authentication required")
		return
	}

	var req updateCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		utils.SendJSONError(w, "currency required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if err := user.UpdateCurrency(h.db, req.Currency); err != nil {
		utils.SendJSONError(w, "Currency update failed", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Currency preference updated!",
		"user": map[string]interface{}{
			"ID":                 user.ID,
			"firstName":          user.FirstName,
			"lastName":           user.LastName,
			"email":              user.Email,
			"preferred_currency": user.PreferredCurrency,
		},
	})
}

type updateAccountTypeRequest struct {
	UserID      int64  `json:"userId"`
	AccountType string `json:"accountType"`
}

// HandleUpdateAccountType switches a user between manual and broker-fed
// journaling. Part of the unauthenticated body-identified surface, so it
// reports failures in the body with HTTP 200.
func (h *UserHandler) HandleUpdateAccountType(w http.ResponseWriter, r *http.Request) {
	var req updateAccountTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendFailure(w, "Invalid request body")
		return
	}
	if req.UserID == 0 || req.AccountType == "" {
		utils.SendFailure(w, "User ID and account type required")
		return
	}

	user, err := model.GetUserByID(h.db, req.UserID)
	if err != nil {
		utils.SendFailure(w, "User not found")
		return
	}
	if err := user.UpdateAccountType(h.db, validation.SanitizeText(req.AccountType)); err != nil {
		utils.SendFailure(w, err.Error())
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Account type updated!",
		"user": map[string]interface{}{
			"ID":          user.ID,
			"firstName":   user.FirstName,
			"lastName":    user.LastName,
			"accountType": user.AccountType,
		},
	})
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// HandleDeleteAccount soft-deletes the authenticated account after
// verifying the password. The row survives for administrative restore.
func (h *UserHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendAuthError(w, "Authentication required")
		return
	}

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		utils.SendJSONError(w, "Password is required", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		utils.SendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if err := user.CheckPassword(req.Password); err != nil {
		utils.SendJSONError(w, "Invalid password", http.StatusUnauthorized)
		return
	}
	if err := user.SoftDelete(h.db); err != nil {
		utils.SendJSONError(w, "Account deletion failed", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("account soft-deleted", "userID", userID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Account deleted successfully. Contact admin to restore.",
	})
}
