package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found or account deleted")

type User struct {
	ID                int64     `json:"ID"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Password          string    `json:"-"`
	PreferredCurrency string    `json:"preferred_currency"`
	AccountType       string    `json:"accountType"`
	IsDeleted         bool      `json:"-"`
	ResetToken        string    `json:"-"`
	ResetTokenExpiry  time.Time `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) CreateUser(db *sql.DB) error {
	u.CreatedAt = time.Now()
	if u.PreferredCurrency == "" {
		u.PreferredCurrency = "USD"
	}
	if u.AccountType == "" {
		u.AccountType = "manual"
	}
	u.PreferredCurrency = strings.ToUpper(u.PreferredCurrency)

	query := `
	INSERT INTO users (first_name, last_name, email, phone, password, preferred_currency, account_type, is_deleted, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		u.FirstName,
		u.LastName,
		u.Email,
		u.Phone,
		u.Password,
		u.PreferredCurrency,
		u.AccountType,
		u.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var phone, resetToken sql.NullString
	var resetTokenExpiry sql.NullTime

	err := row.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &phone,
		&user.Password, &user.PreferredCurrency, &user.AccountType,
		&user.IsDeleted, &resetToken, &resetTokenExpiry, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.Phone = phone.String
	user.ResetToken = resetToken.String
	user.ResetTokenExpiry = resetTokenExpiry.Time
	return &user, nil
}

const userColumns = `id, first_name, last_name, email, phone, password, preferred_currency, account_type, is_deleted, reset_token, reset_token_expiry, created_at`

// GetUserByID returns the user only if it exists and is not soft-deleted.
func GetUserByID(db *sql.DB, id int64) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ? AND is_deleted = 0`, id)
	return scanUser(row)
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ? AND is_deleted = 0`, email)
	return scanUser(row)
}

func GetUserByPhone(db *sql.DB, phone string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = ? AND is_deleted = 0`, phone)
	return scanUser(row)
}

// EmailInUse reports whether a non-deleted user other than excludeID holds the email.
func EmailInUse(db *sql.DB, email string, excludeID int64) (bool, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM users WHERE email = ? AND id != ? AND is_deleted = 0`, email, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PhoneInUse reports whether a non-deleted user other than excludeID holds the phone.
func PhoneInUse(db *sql.DB, phone string, excludeID int64) (bool, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM users WHERE phone = ? AND id != ? AND is_deleted = 0`, phone, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ProfileUpdate carries optional profile fields; empty strings leave the
// stored value unchanged (COALESCE semantics).
type ProfileUpdate struct {
	FirstName         string
	LastName          string
	Email             string
	Phone             string
	PasswordHash      string
	PreferredCurrency string
}

func (u *User) UpdateProfile(db *sql.DB, update ProfileUpdate) error {
	query := `
	UPDATE users SET
		first_name = COALESCE(NULLIF(?, ''), first_name),
		last_name = COALESCE(NULLIF(?, ''), last_name),
		email = COALESCE(NULLIF(?, ''), email),
		phone = COALESCE(NULLIF(?, ''), phone),
		password = COALESCE(NULLIF(?, ''), password),
		preferred_currency = COALESCE(NULLIF(?, ''), preferred_currency)
	WHERE id = ? AND is_deleted = 0`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	currency := strings.ToUpper(update.PreferredCurrency)
	res, err := stmt.Exec(
		update.FirstName, update.LastName, update.Email, update.Phone,
		update.PasswordHash, currency, u.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	if update.FirstName != "" {
		u.FirstName = update.FirstName
	}
	if update.LastName != "" {
		u.LastName = update.LastName
	}
	if update.Email != "" {
		u.Email = update.Email
	}
	if update.Phone != "" {
		u.Phone = update.Phone
	}
	if update.PasswordHash != "" {
		u.Password = update.PasswordHash
	}
	if currency != "" {
		u.PreferredCurrency = currency
	}
	return nil
}

func (u *User) UpdateCurrency(db *sql.DB, currency string) error {
	currency = strings.ToUpper(currency)
	res, err := db.Exec(`UPDATE users SET preferred_currency = ? WHERE id = ? AND is_deleted = 0`, currency, u.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrUserNotFound
	}
	u.PreferredCurrency = currency
	return nil
}

func (u *User) UpdateAccountType(db *sql.DB, accountType string) error {
	res, err := db.Exec(`UPDATE users SET account_type = ? WHERE id = ? AND is_deleted = 0`, accountType, u.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrUserNotFound
	}
	u.AccountType = accountType
	return nil
}

// UpdatePassword stores a new password hash and clears any pending reset token.
func (u *User) UpdatePassword(db *sql.DB, newPasswordHash string) error {
	u.Password = newPasswordHash
	u.ResetToken = ""
	u.ResetTokenExpiry = time.Time{}

	query := `
	UPDATE users
	SET password = ?, reset_token = NULL, reset_token_expiry = NULL
	WHERE id = ?`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(u.Password, u.ID)
	return err
}

func (u *User) SetPasswordResetToken(db *sql.DB, token string, expiresAt time.Time) error {
	u.ResetToken = token
	u.ResetTokenExpiry = expiresAt

	query := `
	UPDATE users
	SET reset_token = ?, reset_token_expiry = ?
	WHERE id = ?`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(u.ResetToken, u.ResetTokenExpiry, u.ID)
	return err
}

// GetUserByResetToken returns the user holding an unexpired reset token.
func GetUserByResetToken(db *sql.DB, token string) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE reset_token = ? AND reset_token_expiry > ?`, token, time.Now())
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, errors.New("invalid or expired password reset token")
		}
		return nil, err
	}
	return user, nil
}

// SoftDelete marks the account deleted. The row is never physically removed;
// an administrative restore can reverse it.
func (u *User) SoftDelete(db *sql.DB) error {
	_, err := db.Exec(`UPDATE users SET is_deleted = 1 WHERE id = ?`, u.ID)
	if err == nil {
		u.IsDeleted = true
	}
	return err
}

// RestoreUser reverses a soft delete. Caller is responsible for the
// administrative-secret check.
func RestoreUser(db *sql.DB, id int64) error {
	_, err := db.Exec(`UPDATE users SET is_deleted = 0 WHERE id = ?`, id)
	return err
}
