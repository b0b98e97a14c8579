package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/tradeanalytics/backend/src/config"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/model"
	"github.com/username/tradeanalytics/backend/src/security"
	"github.com/username/tradeanalytics/backend/src/security/validation"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type AuthHandler struct {
	db          *sql.DB
	authService *security.AuthService
}

func NewAuthHandler(db *sql.DB, authService *security.AuthService) *AuthHandler {
	return &AuthHandler{
		db:          db,
		authService: authService,
	}
}

type registerRequest struct {
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Password          string `json:"password"`
	PreferredCurrency string `json:"preferred_currency"`
}

// userPayload is the user shape returned by register/login/profile routes.
func userPayload(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"ID":                 u.ID,
		"firstName":          u.FirstName,
		"lastName":           u.LastName,
		"email":              u.Email,
		"phone":              u.Phone,
		"accountType":        u.AccountType,
		"preferred_currency": u.PreferredCurrency,
	}
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validation.ValidateStringNotEmpty(req.FirstName, "firstName"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.Email, "email"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Password) < 6 {
		utils.SendJSONError(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(req.PreferredCurrency); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if inUse, err := model.EmailInUse(h.db, req.Email, 0); err != nil {
		utils.SendJSONError(w, "Registration failed", http.StatusInternalServerError)
		return
	} else if inUse {
		utils.SendJSONError(w, "Email already exists", http.StatusBadRequest)
		return
	}
	if req.Phone != "" {
		if inUse, err := model.PhoneInUse(h.db, req.Phone, 0); err != nil {
			utils.SendJSONError(w, "Registration failed", http.StatusInternalServerError)
			return
		} else if inUse {
			utils.SendJSONError(w, "Phone number already exists", http.StatusBadRequest)
			return
		}
	}

	user := &model.User{
		FirstName:         validation.SanitizeText(req.FirstName),
		LastName:          validation.SanitizeText(req.LastName),
		Email:             req.Email,
		Phone:             req.Phone,
		PreferredCurrency: req.PreferredCurrency,
	}
	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		utils.SendJSONError(w, "Registration failed", http.StatusInternalServerError)
		return
	}
	user.Password = hash
	if err := user.CreateUser(h.db); err != nil {
		ctxLogger.Error("failed to create user", "email", req.Email, "error", err)
		utils.SendJSONError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		utils.SendJSONError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("user registered", "userID", user.ID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "User registered successfully!",
		"token":   token,
		"user":    userPayload(user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// HandleLogin authenticates by email or phone, whichever is supplied.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var user *model.User
	var err error
	switch {
	case strings.TrimSpace(req.Email) != "":
		user, err = model.GetUserByEmail(h.db, strings.TrimSpace(strings.ToLower(req.Email)))
	case strings.TrimSpace(req.Phone) != "":
		user, err = model.GetUserByPhone(h.db, strings.TrimSpace(req.Phone))
	default:
		utils.SendJSONError(w, "Please enter email or phone", http.StatusBadRequest)
		return
	}
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			utils.SendJSONError(w, "User not found or account deleted", http.StatusUnauthorized)
			return
		}
		utils.SendJSONError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	if err := user.CheckPassword(req.Password); err != nil {
		utils.SendJSONError(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		utils.SendJSONError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("login successful", "userID", user.ID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"token":   token,
		"user":    userPayload(user),
	})
}

// HandleLogout acknowledges a client-side logout. Tokens are stateless, so
// there is nothing to revoke server-side.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

type restoreRequest struct {
	AdminSecret string `json:"adminSecret"`
}

// HandleRestoreUser reverses a soft delete. Guarded by the shared
// administrative secret instead of a user token; no password check.
func (h *AuthHandler) HandleRestoreUser(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if config.Cfg.AdminSecret == "" || req.AdminSecret != config.Cfg.AdminSecret {
		utils.SendJSONError(w, "Admin access only", http.StatusForbidden)
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := model.RestoreUser(h.db, userID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("user account restored", "userID", userID)
	utils.SendJSON(w, map[string]interface{}{
		"success": true,
		"message": "User account restored",
	})
}
