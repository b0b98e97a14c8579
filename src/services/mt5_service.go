package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/models"
	"github.com/username/tradeanalytics/backend/src/security/validation"
)

type mt5ServiceImpl struct {
	db       *sql.DB
	validate *validator.Validate
}

func NewMT5Service(db *sql.DB) MT5Service {
	return &mt5ServiceImpl{
		db:       db,
		validate: validator.New(),
	}
}

// SaveCredentials links a broker account to the user. The account id is
// globally unique; linking an account that is already registered fails
// with a conflict. The investor password is stored only as a bcrypt hash.
func (s *mt5ServiceImpl) SaveCredentials(userID int64, input models.MT5CredentialsInput) (*models.MT5Account, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.InvestorPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &models.MT5Account{
		UserID:           userID,
		BrokerName:       validation.SanitizeText(input.BrokerName),
		AccountID:        validation.SanitizeText(strings.TrimSpace(input.AccountID)),
		ServerName:       validation.SanitizeText(input.ServerName),
		ConnectionStatus: "disconnected",
		CreatedAt:        time.Now(),
	}

	res, err := s.db.Exec(`
		INSERT INTO mt5_accounts (user_id, broker_name, account_id, server_name, investor_password, connection_status, created_at)
		VALUES (?, ?, ?, ?, ?, 'disconnected', ?)`,
		account.UserID, account.BrokerName, account.AccountID, account.ServerName, string(hashed), account.CreatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	account.ID, _ = res.LastInsertId()
	logger.L.Info("broker account linked", "userID", userID, "accountID", account.AccountID, "broker", account.BrokerName)
	return account, nil
}

func (s *mt5ServiceImpl) GetAccount(userID int64) (*models.MT5Account, error) {
	var account models.MT5Account
	var lastConnected sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, user_id, broker_name, account_id, server_name, investor_password, connection_status, last_connected, created_at
		FROM mt5_accounts WHERE user_id = ?`, userID).Scan(
		&account.ID, &account.UserID, &account.BrokerName, &account.AccountID, &account.ServerName,
		&account.InvestorPassword, &account.ConnectionStatus, &lastConnected, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	account.LastConnected = lastConnected.Time
	return &account, nil
}

// TestConnection verifies the stored link and the investor password, then
// marks the link connected. The actual terminal handshake happens in the
// external bridge; this records link health for the UI.
func (s *mt5ServiceImpl) TestConnection(userID int64, accountID, investorPassword string) (*models.MT5Account, error) {
	var account models.MT5Account
	var lastConnected sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, user_id, broker_name, account_id, server_name, investor_password, connection_status, last_connected, created_at
		FROM mt5_accounts WHERE user_id = ? AND account_id = ?`, userID, accountID).Scan(
		&account.ID, &account.UserID, &account.BrokerName, &account.AccountID, &account.ServerName,
		&account.InvestorPassword, &account.ConnectionStatus, &lastConnected, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.InvestorPassword), []byte(investorPassword)) != nil {
		return nil, ErrBadInvestorPass
	}

	now := time.Now()
	if _, err := s.db.Exec(`
		UPDATE mt5_accounts SET connection_status = 'connected', last_connected = ? WHERE id = ?`,
		now, account.ID); err != nil {
		return nil, err
	}
	account.ConnectionStatus = "connected"
	account.LastConnected = now
	account.InvestorPassword = ""
	return &account, nil
}
