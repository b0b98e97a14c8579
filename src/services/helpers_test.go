package services

import (
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/username/tradeanalytics/backend/src/logger"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
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

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()

	res, err := db.Exec(`INSERT INTO users (first_name, email, password) VALUES ('Test', ?, 'hashed')`, email)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func linkMT5Account(t *testing.T, db *sql.DB, userID int64, accountID string) {
	t.Helper()

	_, err := db.Exec(`INSERT INTO mt5_accounts (user_id, broker_name, account_id, server_name, investor_password) VALUES (?, 'TestBroker', ?, 'TestServer', 'hashed')`,
		userID, accountID)
	require.NoError(t, err)
}
