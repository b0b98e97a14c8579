package model

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradeanalytics/backend/src/logger"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func hashPassword(t *testing.T, plain string) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const usersSchema = `
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
`

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(usersSchema)
	require.NoError(t, err)
	return db
}

func newUser(t *testing.T, db *sql.DB, email string) *User {
	t.Helper()

	u := &User{FirstName: "Ana", LastName: "Silva", Email: email, Password: hashPassword(t, "pass123")}
	require.NoError(t, u.CreateUser(db))
	return u
}

func TestCreateUserDefaults(t *testing.T) {
	db := newTestDB(t)
	u := newUser(t, db, "ana@example.com")

	assert.NotZero(t, u.ID)
	assert.Equal(t, "USD", u.PreferredCurrency)
	assert.Equal(t, "manual", u.AccountType)

	stored, err := GetUserByID(db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", stored.Email)
	assert.NoError(t, stored.CheckPassword("pass123"))
	assert.Error(t, stored.CheckPassword("wrong"))
}

func TestGetUserByEmailAndPhone(t *testing.T) {
	db := newTestDB(t)
	u := &User{FirstName: "Rui", Email: "rui@example.com", Phone: "911222333", Password: hashPassword(t, "pass123")}
	require.NoError(t, u.CreateUser(db))

	byEmail, err := GetUserByEmail(db, "rui@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byPhone, err := GetUserByPhone(db, "911222333")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byPhone.ID)

	_, err = GetUserByEmail(db, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEmailAndPhoneInUse(t *testing.T) {
	db := newTestDB(t)
	u := &User{FirstName: "Rui", Email: "taken@example.com", Phone: "911000111", Password: hashPassword(t, "pass123")}
	require.NoError(t, u.CreateUser(db))

	inUse, err := EmailInUse(db, "taken@example.com", 0)
	require.NoError(t, err)
	assert.True(t, inUse)

	// The owner itself is excluded.
	inUse, err = EmailInUse(db, "taken@example.com", u.ID)
	require.NoError(t, err)
	assert.False(t, inUse)

	inUse, err = PhoneInUse(db, "911000111", 0)
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = EmailInUse(db, "free@example.com", 0)
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestUpdateProfilePartial(t *testing.T) {
	db := newTestDB(t)
	u := newUser(t, db, "partial@example.com")

	err := u.UpdateProfile(db, ProfileUpdate{FirstName: "Beatriz", PreferredCurrency: "eur"})
	require.NoError(t, err)

	stored, err := GetUserByID(db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beatriz", stored.FirstName)
	assert.Equal(t, "Silva", stored.LastName)
	assert.Equal(t, "partial@example.com", stored.Email)
	assert.Equal(t, "EUR", stored.PreferredCurrency)
}

func TestSoftDeleteHidesUserAndFreesEmail(t *testing.T) {
	db := newTestDB(t)
	u := newUser(t, db, "gone@example.com")

	require.NoError(t, u.SoftDelete(db))
	assert.True(t, u.IsDeleted)

	_, err := GetUserByID(db, u.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	// The partial unique index lets a new registration reuse the email.
	replacement := newUser(t, db, "gone@example.com")
	assert.NotEqual(t, u.ID, replacement.ID)

	require.NoError(t, RestoreUser(db, replacement.ID))
}

func TestRestoreUser(t *testing.T) {
	db := newTestDB(t)
	u := newUser(t, db, "restore@example.com")

	require.NoError(t, u.SoftDelete(db))
	require.NoError(t, RestoreUser(db, u.ID))

	stored, err := GetUserByID(db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "restore@example.com", stored.Email)
}

func TestPasswordResetTokenLifecycle(t *testing.T) {
	db := newTestDB(t)
	u := newUser(t, db, "reset@example.com")

	require.NoError(t, u.SetPasswordResetToken(db, "tok-abc", time.Now().Add(15*time.Minute)))

	found, err := GetUserByResetToken(db, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = GetUserByResetToken(db, "tok-unknown")
	assert.Error(t, err)

	// Consuming the token clears it.
	require.NoError(t, found.UpdatePassword(db, hashPassword(t, "newpass456")))

	_, err = GetUserByResetToken(db, "tok-abc")
	assert.Error(t, err)

	stored, err := GetUserByID(db, u.ID)
	require.NoError(t, err)
	assert.NoError(t, stored.CheckPassword("newpass456"))
}

func TestExpiredResetTokenRejected(t *testing.T) {
	db := newTestDB(t)
	u := newUser(t, db, "expired@example.com")

	require.NoError(t, u.SetPasswordResetToken(db, "tok-old", time.Now().Add(-time.Minute)))

	_, err := GetUserByResetToken(db, "tok-old")
	assert.Error(t, err)
}
