package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/username/tradeanalytics/backend/src/models"
)

// Common service errors.
var (
	ErrTradeNotFound    = errors.New("trade not found")
	ErrAccountNotFound  = errors.New("broker account not found")
	ErrAccountExists    = errors.New("this broker account is already linked")
	ErrBadInvestorPass  = errors.New("invalid investor password")
	ErrValidationFailed = errors.New("trade validation failed")
	ErrBatchTooLarge    = errors.New("bulk payload exceeds maximum batch size")
	ErrConcurrentUpdate = errors.New("screenshot list was modified concurrently")
)

// Ledger selects which trade table an operation targets.
type Ledger string

const (
	LedgerManual Ledger = "manual"
	LedgerBroker Ledger = "api"
)

// BulkResult reports a bulk ingestion outcome. Rows are independent: a
// failed row never rolls back its siblings.
type BulkResult struct {
	SavedCount int                      `json:"savedCount"`
	ErrorCount int                      `json:"errorCount"`
	Results    []models.BulkTradeResult `json:"results"`
}

// BrokerIngestResult reports a broker push. Every input item gets a result
// entry; duplicate tickets are skipped, unlinked accounts are errors, and
// neither stops the rest of the batch.
type BrokerIngestResult struct {
	SavedCount   int                        `json:"savedCount"`
	SkippedCount int                        `json:"skippedCount"`
	ErrorCount   int                        `json:"errorCount"`
	Results      []models.BrokerTradeResult `json:"results"`
}

// TradeService owns both trade ledgers. Delete and update operations
// return the affected trade's symbol for the response body.
type TradeService interface {
	SaveTrade(input models.TradeInput) (*models.Trade, error)
	SaveTradesBulk(inputs []models.TradeInput) (*BulkResult, error)
	GetTrades(userID int64) ([]models.Trade, error)
	GetAPITrades(userID int64) ([]models.APITrade, error)
	GetTradeWithScreenshots(userID, tradeID int64) (*models.Trade, error)
	DeleteTrade(userID, tradeID int64) (symbol string, err error)
	DeleteAPITrade(userID, tradeID int64) (symbol string, err error)
	UpdateNotes(userID, tradeID int64, ledger Ledger, notes string) (symbol string, err error)
	UpdateStrategy(userID, tradeID int64, ledger Ledger, strategy string) (symbol string, err error)
	UpdateAPITradeNotes(userID int64, ticket, notes string) (symbol string, err error)
	UpdateAPITradeStrategy(userID int64, ticket, strategy string) (symbol string, err error)
	IngestBrokerTrades(inputs []models.BrokerTradeInput) (*BrokerIngestResult, error)
}

// AnalyticsService aggregates across both ledgers. Summary results are
// cached per user and invalidated on every write.
type AnalyticsService interface {
	GetSummary(userID int64) (*models.TradeSummary, error)
	GetTradesByDate(userID int64, date time.Time) (*models.TradesByDate, error)
	GetDailyBreakdown(userID int64, from, to time.Time) ([]models.DailyPnL, error)
	InvalidateUserCache(userID int64)
}

// ScreenshotAction selects the mutation applied by a bulk screenshot
// update.
type ScreenshotAction string

const (
	ScreenshotAdd     ScreenshotAction = "add"
	ScreenshotReplace ScreenshotAction = "replace"
	ScreenshotDelete  ScreenshotAction = "delete"
	ScreenshotClear   ScreenshotAction = "clear"
)

// ScreenshotState is a trade's attachment list after a mutation, with the
// identifying fields responses echo back. Ticket is set only on the
// ticket-addressed broker operations.
type ScreenshotState struct {
	TradeID     int64
	Ticket      string
	Symbol      string
	Screenshots []string
}

// ScreenshotService manages trade attachments against the image host.
// Manual trades are addressed by row id, broker trades by ticket.
type ScreenshotService interface {
	AttachScreenshot(ctx context.Context, userID, tradeID int64, ledger Ledger, file io.Reader, filename string) (*ScreenshotState, error)
	RemoveScreenshot(ctx context.Context, userID, tradeID int64, ledger Ledger, screenshotURL string) (*ScreenshotState, error)
	AttachScreenshotByTicket(ctx context.Context, userID int64, ticket string, file io.Reader, filename string) (*ScreenshotState, error)
	RemoveScreenshotByTicket(ctx context.Context, userID int64, ticket, screenshotURL string) (*ScreenshotState, error)
	UpdateScreenshots(ctx context.Context, userID, tradeID int64, ledger Ledger, action ScreenshotAction, urls []string) (*ScreenshotState, error)
}

// ImageHostService is the remote image store (Cloudinary-compatible).
type ImageHostService interface {
	Upload(ctx context.Context, file io.Reader, userID, tradeID int64) (*models.Screenshot, error)
	Destroy(ctx context.Context, publicID string) error
	PublicIDFromURL(url string) (string, bool)
}

// EmailService sends transactional mail.
type EmailService interface {
	SendPasswordResetEmail(toEmail, resetLink string) error
}

// MT5Service manages broker links.
type MT5Service interface {
	SaveCredentials(userID int64, input models.MT5CredentialsInput) (*models.MT5Account, error)
	GetAccount(userID int64) (*models.MT5Account, error)
	TestConnection(userID int64, accountID, investorPassword string) (*models.MT5Account, error)
}
