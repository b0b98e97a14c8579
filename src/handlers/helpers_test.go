package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/username/tradeanalytics/backend/src/config"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
	"github.com/username/tradeanalytics/backend/src/security"
	"github.com/username/tradeanalytics/backend/src/services"
	_ "modernc.org/sqlite"
)

// stubImageHost mints deterministic URLs so screenshot routes can run
// without a Cloudinary account.
type stubImageHost struct {
	uploads int
}

func (s *stubImageHost) Upload(ctx context.Context, file io.Reader, userID, tradeID int64) (*models.Screenshot, error) {
	s.uploads++
	publicID := fmt.Sprintf("trading-app/user_%d/trade_%d_%d", userID, tradeID, s.uploads)
	return &models.Screenshot{
		URL:      fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/v1/%s.png", publicID),
		PublicID: publicID,
	}, nil
}

func (s *stubImageHost) Destroy(ctx context.Context, publicID string) error { return nil }

func (s *stubImageHost) PublicIDFromURL(url string) (string, bool) {
	if !strings.Contains(url, "cloudinary.com") {
		return "", false
	}
	trimmed := strings.TrimPrefix(url, "https://res.cloudinary.com/demo/image/upload/v1/")
	return strings.TrimSuffix(trimmed, ".png"), true
}

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		Port:               "3000",
		LogLevel:           "error",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		AdminSecret:        "admin-secret",
		AccessTokenExpiry:  24 * time.Hour,
		ResetTokenExpiry:   15 * time.Minute,
		MaxUploadSizeBytes: 10 * 1024 * 1024,
		FrontendBaseURL:    "http://localhost:5500",
	}
	os.Exit(m.Run())
}

const testSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    password TEXT NOT NULL,
    preferred_currency TEXT NOT NULL DEFAULT 'USD',
    account_type TEXT NOT NULL DEFAULT 'manual',
    is_deleted INTEGER NOT NULL DEFAULT 0,
    reset_token TEXT,
    reset_token_expiry TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX idx_users_email_active ON users (email) WHERE is_deleted = 0;
CREATE UNIQUE INDEX idx_users_phone_active ON users (phone) WHERE is_deleted = 0 AND phone != '';

CREATE TABLE trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users (id),
    symbol TEXT NOT NULL,
    trade_type TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'forex',
    quantity REAL NOT NULL,
    price REAL NOT NULL,
    exit_price REAL NOT NULL,
    pnl REAL NOT NULL DEFAULT 0,
    strategy TEXT,
    timestamp TIMESTAMP NOT NULL,
    notes TEXT,
    screenshots TEXT,
    screenshots_version INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE api_trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users (id),
    account_id TEXT NOT NULL,
    platform TEXT NOT NULL DEFAULT 'mt5',
    symbol TEXT NOT NULL,
    trade_type TEXT NOT NULL,
    quantity REAL NOT NULL,
    price REAL NOT NULL,
    exit_price REAL NOT NULL,
    pnl REAL NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    ticket TEXT NOT NULL UNIQUE,
    notes TEXT,
    strategy TEXT,
    screenshots TEXT,
    screenshots_version INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE mt5_accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users (id),
    broker_name TEXT NOT NULL,
    account_id TEXT NOT NULL UNIQUE,
    server_name TEXT NOT NULL,
    investor_password TEXT NOT NULL,
    connection_status TEXT NOT NULL DEFAULT 'disconnected',
    last_connected TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type testApp struct {
	db     *sql.DB
	router chi.Router
	auth   *security.AuthService
}

// newTestApp wires the full API surface against an in-memory database, the
// same way main does.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	emailService := services.NewEmailService("", 0, "", "", "noreply@example.com")
	analyticsService := services.NewAnalyticsService(db)
	tradeService := services.NewTradeService(db, analyticsService)
	screenshotService := services.NewScreenshotService(db, &stubImageHost{})
	mt5Service := services.NewMT5Service(db)

	authHandler := NewAuthHandler(db, authService)
	userHandler := NewUserHandler(db, authService)
	passwordHandler := NewPasswordHandler(db, authService, emailService, config.Cfg.ResetTokenExpiry)
	tradeHandler := NewTradeHandler(tradeService)
	analyticsHandler := NewAnalyticsHandler(analyticsService)
	screenshotHandler := NewScreenshotHandler(screenshotService)
	mt5Handler := NewMT5Handler(mt5Service, tradeService)

	r := chi.NewRouter()
	r.Use(ContextualLoggerMiddleware)
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/admin/restore-user/{userId}", authHandler.HandleRestoreUser)
		r.Post("/update-account-type", userHandler.HandleUpdateAccountType)
		r.Post("/forgot-password", passwordHandler.HandleForgotPassword)
		r.Post("/reset-password", passwordHandler.HandleResetPassword)
		r.Post("/update-password", passwordHandler.HandleUpdatePassword)

		r.Group(func(r chi.Router) {
			r.Use(authHandler.AuthMiddleware)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/user-profile", userHandler.HandleGetProfile)
			r.Post("/update-profile", userHandler.HandleUpdateProfile)
			r.Post("/update-currency", userHandler.HandleUpdateCurrency)
			r.Delete("/delete-account", userHandler.HandleDeleteAccount)
		})

		r.Post("/save-trade", tradeHandler.HandleSaveTrade)
		r.Post("/save-bulk-trades", tradeHandler.HandleSaveBulkTrades)
		r.Post("/save-api-trade", tradeHandler.HandleSaveAPITrade)
		r.Get("/user-trades/{userid}", tradeHandler.HandleGetUserTrades)
		r.Get("/user-api-trades/{userid}", tradeHandler.HandleGetUserAPITrades)
		r.Delete("/trades/{id}", tradeHandler.HandleDeleteTrade)
		r.Delete("/api-trades/{id}", tradeHandler.HandleDeleteAPITrade)
		r.Post("/update-trade-note", tradeHandler.HandleUpdateTradeNote)
		r.Post("/update-api-trade-note", tradeHandler.HandleUpdateAPITradeNote)
		r.Post("/update-trade-strategy", tradeHandler.HandleUpdateTradeStrategy)
		r.Post("/update-api-trade-strategy", tradeHandler.HandleUpdateAPITradeStrategy)
		r.Get("/trade-with-screenshots/{tradeId}", tradeHandler.HandleGetTradeWithScreenshots)

		r.Get("/trade-summary/{userid}", analyticsHandler.HandleTradeSummary)
		r.Get("/trades-by-date/{userid}", analyticsHandler.HandleTradesByDate)
		r.Get("/trades-by-date-range/{userid}", analyticsHandler.HandleTradesByDateRange)

		r.Post("/upload-screenshot", screenshotHandler.HandleUploadScreenshot)
		r.Post("/upload-api-screenshot", screenshotHandler.HandleUploadAPIScreenshot)
		r.Delete("/trade-screenshot", screenshotHandler.HandleDeleteScreenshot)
		r.Delete("/api-trade-screenshot", screenshotHandler.HandleDeleteAPIScreenshot)
		r.Post("/update-trade-screenshots", screenshotHandler.HandleUpdateTradeScreenshots)

		r.Post("/save-mt5-credentials", mt5Handler.HandleSaveCredentials)
		r.Post("/test-mt5-connection", mt5Handler.HandleTestConnection)
		r.Post("/mt5/receive-trades", mt5Handler.HandleReceiveTrades)
	})

	return &testApp{db: db, router: r, auth: authService}
}

func (a *testApp) request(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// registerUser creates an account through the API and returns its id and token.
func (a *testApp) registerUser(t *testing.T, email string) (int64, string) {
	t.Helper()

	rec, resp := a.request(t, http.MethodPost, "/api/register", map[string]interface{}{
		"firstName": "Test",
		"lastName":  "User",
		"email":     email,
		"password":  "pass123",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	user := resp["user"].(map[string]interface{})
	return int64(user["ID"].(float64)), token
}
