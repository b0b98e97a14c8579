package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradeanalytics/backend/src/models"
	"golang.org/x/crypto/bcrypt"
)

func credentials(accountID string) models.MT5CredentialsInput {
	return models.MT5CredentialsInput{
		BrokerName:       "IC Markets",
		AccountID:        accountID,
		ServerName:       "ICMarkets-Live01",
		InvestorPassword: "inv-pass-123",
	}
}

func TestSaveCredentialsHashesInvestorPassword(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "mt5save@example.com")
	svc := NewMT5Service(db)

	account, err := svc.SaveCredentials(userID, credentials("100200"))
	require.NoError(t, err)
	assert.Equal(t, "100200", account.AccountID)
	assert.Equal(t, "disconnected", account.ConnectionStatus)

	var stored string
	require.NoError(t, db.QueryRow(`SELECT investor_password FROM mt5_accounts WHERE account_id = '100200'`).Scan(&stored))
	assert.NotEqual(t, "inv-pass-123", stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("inv-pass-123")))
}

func TestSaveCredentialsDuplicateAccount(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "mt5dup@example.com")
	other := seedUser(t, db, "mt5dup2@example.com")
	svc := NewMT5Service(db)

	_, err := svc.SaveCredentials(userID, credentials("300400"))
	require.NoError(t, err)

	// Account ids are globally unique, even across users.
	_, err = svc.SaveCredentials(other, credentials("300400"))
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestSaveCredentialsValidation(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "mt5bad@example.com")
	svc := NewMT5Service(db)

	_, err := svc.SaveCredentials(userID, models.MT5CredentialsInput{BrokerName: "X"})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestTestConnectionVerifiesPasswordAndMarksConnected(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "mt5conn@example.com")
	svc := NewMT5Service(db)

	_, err := svc.SaveCredentials(userID, credentials("500600"))
	require.NoError(t, err)

	_, err = svc.TestConnection(userID, "500600", "wrong-pass")
	assert.ErrorIs(t, err, ErrBadInvestorPass)

	_, err = svc.TestConnection(userID, "999999", "inv-pass-123")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	account, err := svc.TestConnection(userID, "500600", "inv-pass-123")
	require.NoError(t, err)
	assert.Equal(t, "connected", account.ConnectionStatus)
	assert.False(t, account.LastConnected.IsZero())
	assert.Empty(t, account.InvestorPassword)

	stored, err := svc.GetAccount(userID)
	require.NoError(t, err)
	assert.Equal(t, "connected", stored.ConnectionStatus)
}

func TestGetAccountNotFound(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "mt5none@example.com")
	svc := NewMT5Service(db)

	_, err := svc.GetAccount(userID)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
