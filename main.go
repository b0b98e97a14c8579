package main

import (
	"crypto/tls"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/tradeanalytics/backend/src/config"
	"github.com/username/tradeanalytics/backend/src/database"
	"github.com/username/tradeanalytics/backend/src/handlers"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/security"
	"github.com/username/tradeanalytics/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, user-id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("TradeAnalytics backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	db := database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(db, config.Cfg.DatabasePath)

	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	emailService := services.NewEmailService(
		config.Cfg.SMTPServer,
		config.Cfg.SMTPPort,
		config.Cfg.SMTPUser,
		config.Cfg.SMTPPassword,
		config.Cfg.SenderEmail,
	)
	imageHostService := services.NewImageHostService(
		config.Cfg.CloudinaryCloudName,
		config.Cfg.CloudinaryAPIKey,
		config.Cfg.CloudinaryAPISecret,
	)

	analyticsService := services.NewAnalyticsService(db)
	tradeService := services.NewTradeService(db, analyticsService)
	screenshotService := services.NewScreenshotService(db, imageHostService)
	mt5Service := services.NewMT5Service(db)

	authHandler := handlers.NewAuthHandler(db, authService)
	userHandler := handlers.NewUserHandler(db, authService)
	passwordHandler := handlers.NewPasswordHandler(db, authService, emailService, config.Cfg.ResetTokenExpiry)
	tradeHandler := handlers.NewTradeHandler(tradeService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	screenshotHandler := handlers.NewScreenshotHandler(screenshotService)
	mt5Handler := handlers.NewMT5Handler(mt5Service, tradeService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/health", handlers.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		// Account surface
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

		// Trade ledgers
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

		// Analytics
		r.Get("/trade-summary/{userid}", analyticsHandler.HandleTradeSummary)
		r.Get("/trades-by-date/{userid}", analyticsHandler.HandleTradesByDate)
		r.Get("/trades-by-date-range/{userid}", analyticsHandler.HandleTradesByDateRange)

		// Screenshots
		r.Post("/upload-screenshot", screenshotHandler.HandleUploadScreenshot)
		r.Post("/upload-api-screenshot", screenshotHandler.HandleUploadAPIScreenshot)
		r.Post("/update-trade-screenshots", screenshotHandler.HandleUpdateTradeScreenshots)
		r.Delete("/trade-screenshot", screenshotHandler.HandleDeleteScreenshot)
		r.Delete("/api-trade-screenshot", screenshotHandler.HandleDeleteAPIScreenshot)

		// MT5 bridge
		r.Post("/save-mt5-credentials", mt5Handler.HandleSaveCredentials)
		r.Post("/test-mt5-connection", mt5Handler.HandleTestConnection)
		r.Post("/mt5/receive-trades", mt5Handler.HandleReceiveTrades)
	})

	server := &http.Server{
		Addr:         ":" + config.Cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server listening", "port", config.Cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
