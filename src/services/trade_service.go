package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
	"github.com/username/tradeanalytics/backend/src/security/validation"
)

// MaxBulkTrades bounds a single bulk ingestion payload.
const MaxBulkTrades = 500

type tradeServiceImpl struct {
	db        *sql.DB
	validate  *validator.Validate
	analytics AnalyticsService
}

func NewTradeService(db *sql.DB, analytics AnalyticsService) TradeService {
	return &tradeServiceImpl{
		db:        db,
		validate:  validator.New(),
		analytics: analytics,
	}
}

func ledgerTable(ledger Ledger) (string, error) {
	switch ledger {
	case LedgerManual:
		return "trades", nil
	case LedgerBroker:
		return "api_trades", nil
	default:
		return "", fmt.Errorf("unknown ledger %q", ledger)
	}
}

// sanitizeCanonical strips markup from the free-text fields before they
// reach the database.
func sanitizeCanonical(c *models.CanonicalTrade) {
	c.Symbol = validation.SanitizeText(c.Symbol)
	c.Strategy = validation.SanitizeFreeText(c.Strategy)
	c.Notes = validation.SanitizeFreeText(c.Notes)
}

func (s *tradeServiceImpl) insertTrade(c models.CanonicalTrade) (int64, error) {
	rawShots, err := models.MarshalScreenshots(c.Screenshots)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(`
		INSERT INTO trades (user_id, symbol, trade_type, category, quantity, price, exit_price, pnl, strategy, timestamp, notes, screenshots, screenshots_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		c.UserID, c.Symbol, c.TradeType, c.Category, c.Quantity, c.Price, c.ExitPrice, c.PnL, c.Strategy, models.FormatTimestamp(c.Timestamp), c.Notes, rawShots)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *tradeServiceImpl) SaveTrade(input models.TradeInput) (*models.Trade, error) {
	c := input.Normalize()
	sanitizeCanonical(&c)
	if err := s.validate.Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	id, err := s.insertTrade(c)
	if err != nil {
		logger.L.Error("failed to insert trade", "userID", c.UserID, "error", err)
		return nil, err
	}
	s.analytics.InvalidateUserCache(c.UserID)

	shots := c.Screenshots
	if shots == nil {
		shots = []string{}
	}
	return &models.Trade{
		ID:          id,
		UserID:      c.UserID,
		Symbol:      c.Symbol,
		TradeType:   c.TradeType,
		Category:    c.Category,
		Quantity:    c.Quantity,
		Price:       c.Price,
		ExitPrice:   c.ExitPrice,
		PnL:         c.PnL,
		Strategy:    c.Strategy,
		Timestamp:   c.Timestamp,
		Notes:       c.Notes,
		Screenshots: shots,
	}, nil
}

// SaveTradesBulk ingests up to MaxBulkTrades rows. Rows are independent:
// each row is normalized, validated and inserted on its own, and a failed
// row is reported in the result list without affecting its siblings.
// Partial success is the normal case, not an error condition.
func (s *tradeServiceImpl) SaveTradesBulk(inputs []models.TradeInput) (*BulkResult, error) {
	if inputs == nil {
		return nil, fmt.Errorf("%w: invalid trades data", ErrValidationFailed)
	}
	if len(inputs) > MaxBulkTrades {
		return nil, fmt.Errorf("%w: too many trades, maximum %d per request", ErrBatchTooLarge, MaxBulkTrades)
	}

	result := &BulkResult{Results: []models.BulkTradeResult{}}
	touched := map[int64]bool{}
	for _, input := range inputs {
		c := input.Normalize()
		sanitizeCanonical(&c)
		if err := s.validate.Struct(c); err != nil {
			result.ErrorCount++
			result.Results = append(result.Results, models.BulkTradeResult{
				Trade: bulkLabel(c.Symbol), Error: bulkReason(err),
			})
			continue
		}
		if _, err := s.insertTrade(c); err != nil {
			logger.L.Warn("bulk row insert failed", "userID", c.UserID, "symbol", c.Symbol, "error", err)
			result.ErrorCount++
			result.Results = append(result.Results, models.BulkTradeResult{
				Trade: bulkLabel(c.Symbol), Error: "database insert failed",
			})
			continue
		}
		result.SavedCount++
		touched[c.UserID] = true
		result.Results = append(result.Results, models.BulkTradeResult{Success: true, Trade: c.Symbol})
	}

	for userID := range touched {
		s.analytics.InvalidateUserCache(userID)
	}
	logger.L.Info("bulk ingestion complete", "saved", result.SavedCount, "failed", result.ErrorCount)
	return result, nil
}

func bulkLabel(symbol string) string {
	if symbol == "" {
		return "Unknown"
	}
	return symbol
}

// bulkReason maps a validator error to the field that failed, in the order
// clients expect the checks to run.
func bulkReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch verrs[0].Field() {
	case "UserID":
		return "Missing userId"
	case "Symbol":
		return "Missing symbol"
	case "TradeType":
		return "Missing or invalid trade_type"
	case "Quantity":
		return "Invalid quantity"
	case "Price":
		return "Invalid price"
	case "ExitPrice":
		return "Invalid exit_price"
	case "Timestamp":
		return "Missing timestamp"
	default:
		return verrs[0].Error()
	}
}

// lookupLinkedUser resolves a broker account id to the owning user via the
// broker link registry.
func (s *tradeServiceImpl) lookupLinkedUser(accountID string) (int64, error) {
	var userID int64
	err := s.db.QueryRow(`SELECT user_id FROM mt5_accounts WHERE account_id = ?`, accountID).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// IngestBrokerTrades inserts trades pushed by the broker bridge. Each item
// resolves its owning user through the broker link registry; unlinked
// accounts are reported, not silently dropped. The unique ticket column
// makes replayed pushes idempotent: duplicates are counted as skipped,
// never as errors, and nothing stops the rest of the batch.
func (s *tradeServiceImpl) IngestBrokerTrades(inputs []models.BrokerTradeInput) (*BrokerIngestResult, error) {
	result := &BrokerIngestResult{Results: []models.BrokerTradeResult{}}
	touched := map[int64]bool{}

	stmt, err := s.db.Prepare(`
		INSERT INTO api_trades (user_id, account_id, platform, symbol, trade_type, quantity, price, exit_price, pnl, timestamp, ticket, notes, strategy, screenshots, screenshots_version)
		VALUES (?, ?, 'mt5', ?, ?, ?, ?, ?, ?, ?, ?, '', '', '', 0)
		ON CONFLICT (ticket) DO NOTHING`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, input := range inputs {
		if err := s.validate.Struct(input); err != nil {
			result.ErrorCount++
			result.Results = append(result.Results, models.BrokerTradeResult{
				Symbol: input.Symbol, Ticket: input.Ticket, AccountID: input.AccountID,
				Error: "account_id or ticket missing, or trade fields invalid",
			})
			continue
		}

		userID, err := s.lookupLinkedUser(input.AccountID)
		if errors.Is(err, sql.ErrNoRows) {
			result.ErrorCount++
			result.Results = append(result.Results, models.BrokerTradeResult{
				Symbol: input.Symbol, Ticket: input.Ticket, AccountID: input.AccountID,
				Error: "Account not linked to any user",
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		symbol := validation.SanitizeText(strings.ToUpper(strings.TrimSpace(input.Symbol)))
		timestamp := models.ParseBrokerTimestamp(input.CloseTime)

		res, err := stmt.Exec(
			userID, input.AccountID, symbol, strings.ToLower(input.Type),
			input.Volume, input.EntryPrice, input.ExitPrice, input.Profit,
			models.FormatTimestamp(timestamp), input.Ticket)
		if err != nil {
			logger.L.Warn("broker trade insert failed", "ticket", input.Ticket, "error", err)
			result.ErrorCount++
			result.Results = append(result.Results, models.BrokerTradeResult{
				Symbol: input.Symbol, Ticket: input.Ticket, AccountID: input.AccountID,
				Error: err.Error(),
			})
			continue
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			result.SkippedCount++
			result.Results = append(result.Results, models.BrokerTradeResult{
				Symbol: input.Symbol, Ticket: input.Ticket,
				Error: "Duplicate ticket, skipped",
			})
			continue
		}
		result.SavedCount++
		touched[userID] = true
		result.Results = append(result.Results, models.BrokerTradeResult{
			Success: true, Symbol: symbol, Ticket: input.Ticket,
			UserID: userID, AccountID: input.AccountID, Profit: input.Profit,
		})
	}

	for userID := range touched {
		s.analytics.InvalidateUserCache(userID)
	}
	logger.L.Info("broker ingestion complete",
		"saved", result.SavedCount, "skipped", result.SkippedCount, "failed", result.ErrorCount)
	return result, nil
}

func (s *tradeServiceImpl) GetTrades(userID int64) ([]models.Trade, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, symbol, trade_type, category, quantity, price, exit_price, pnl,
		       COALESCE(strategy, ''), timestamp, COALESCE(notes, ''), COALESCE(screenshots, ''), screenshots_version
		FROM trades
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]models.Trade, error) {
	trades := []models.Trade{}
	for rows.Next() {
		var t models.Trade
		var rawShots, rawTime string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.TradeType, &t.Category,
			&t.Quantity, &t.Price, &t.ExitPrice, &t.PnL, &t.Strategy,
			&rawTime, &t.Notes, &rawShots, &t.ScreenshotsVersion); err != nil {
			return nil, err
		}
		t.Timestamp = models.ParseTimestamp(rawTime)
		t.Screenshots = models.UnmarshalScreenshots(rawShots)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *tradeServiceImpl) GetAPITrades(userID int64) ([]models.APITrade, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, account_id, platform, symbol, trade_type, quantity, price, exit_price, pnl,
		       timestamp, ticket, COALESCE(notes, ''), COALESCE(strategy, ''), COALESCE(screenshots, ''), screenshots_version
		FROM api_trades
		WHERE user_id = ?
		ORDER BY timestamp DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAPITrades(rows)
}

func scanAPITrades(rows *sql.Rows) ([]models.APITrade, error) {
	trades := []models.APITrade{}
	for rows.Next() {
		var t models.APITrade
		var rawShots, rawTime string
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Platform, &t.Symbol, &t.TradeType,
			&t.Quantity, &t.Price, &t.ExitPrice, &t.PnL, &rawTime, &t.Ticket,
			&t.Notes, &t.Strategy, &rawShots, &t.ScreenshotsVersion); err != nil {
			return nil, err
		}
		t.Timestamp = models.ParseTimestamp(rawTime)
		t.Screenshots = models.UnmarshalScreenshots(rawShots)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetTradeWithScreenshots fetches one manual trade, checking ownership.
// Ownership mismatch and a missing row look identical to the caller.
func (s *tradeServiceImpl) GetTradeWithScreenshots(userID, tradeID int64) (*models.Trade, error) {
	var t models.Trade
	var rawShots, rawTime string
	var strategy, notes sql.NullString
	err := s.db.QueryRow(`
		SELECT id, user_id, symbol, trade_type, category, quantity, price, exit_price, pnl,
		       strategy, timestamp, notes, COALESCE(screenshots, ''), screenshots_version
		FROM trades WHERE id = ? AND user_id = ?`, tradeID, userID).Scan(
		&t.ID, &t.UserID, &t.Symbol, &t.TradeType, &t.Category,
		&t.Quantity, &t.Price, &t.ExitPrice, &t.PnL, &strategy,
		&rawTime, &notes, &rawShots, &t.ScreenshotsVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Timestamp = models.ParseTimestamp(rawTime)
	t.Strategy = strategy.String
	t.Notes = notes.String
	t.Screenshots = models.UnmarshalScreenshots(rawShots)
	return &t, nil
}

func (s *tradeServiceImpl) deleteFrom(table string, userID, tradeID int64) (string, error) {
	var symbol string
	err := s.db.QueryRow(`SELECT symbol FROM `+table+` WHERE id = ? AND user_id = ?`, tradeID, userID).Scan(&symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTradeNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := s.db.Exec(`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, tradeID, userID); err != nil {
		return "", err
	}
	s.analytics.InvalidateUserCache(userID)
	return symbol, nil
}

func (s *tradeServiceImpl) DeleteTrade(userID, tradeID int64) (string, error) {
	return s.deleteFrom("trades", userID, tradeID)
}

func (s *tradeServiceImpl) DeleteAPITrade(userID, tradeID int64) (string, error) {
	return s.deleteFrom("api_trades", userID, tradeID)
}

// resolveTicket maps a broker ticket to its row id, checking ownership at
// the same time. Broker rows are addressed by ticket on the wire; the MT5
// bridge and its clients never see row ids.
func (s *tradeServiceImpl) resolveTicket(userID int64, ticket string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM api_trades WHERE ticket = ? AND user_id = ?`, ticket, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTradeNotFound
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *tradeServiceImpl) UpdateAPITradeNotes(userID int64, ticket, notes string) (string, error) {
	tradeID, err := s.resolveTicket(userID, ticket)
	if err != nil {
		return "", err
	}
	return s.UpdateNotes(userID, tradeID, LedgerBroker, notes)
}

func (s *tradeServiceImpl) UpdateAPITradeStrategy(userID int64, ticket, strategy string) (string, error) {
	tradeID, err := s.resolveTicket(userID, ticket)
	if err != nil {
		return "", err
	}
	return s.UpdateStrategy(userID, tradeID, LedgerBroker, strategy)
}

func (s *tradeServiceImpl) UpdateNotes(userID, tradeID int64, ledger Ledger, notes string) (string, error) {
	return s.updateText(userID, tradeID, ledger, "notes", validation.SanitizeFreeText(notes), validation.MaxNotesLength)
}

func (s *tradeServiceImpl) UpdateStrategy(userID, tradeID int64, ledger Ledger, strategy string) (string, error) {
	return s.updateText(userID, tradeID, ledger, "strategy", validation.SanitizeFreeText(strings.TrimSpace(strategy)), validation.MaxStrategyLength)
}

func (s *tradeServiceImpl) updateText(userID, tradeID int64, ledger Ledger, column, value string, maxLen int) (string, error) {
	table, err := ledgerTable(ledger)
	if err != nil {
		return "", err
	}
	if err := validation.ValidateStringMaxLength(value, maxLen, column); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	var symbol string
	err = s.db.QueryRow(`SELECT symbol FROM `+table+` WHERE id = ? AND user_id = ?`, tradeID, userID).Scan(&symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTradeNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := s.db.Exec(`UPDATE `+table+` SET `+column+` = ? WHERE id = ? AND user_id = ?`, value, tradeID, userID); err != nil {
		return "", err
	}
	return symbol, nil
}
