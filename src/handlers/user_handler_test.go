package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfilePartialFields(t *testing.T) {
	app := newTestApp(t)
	_, token := app.registerUser(t, "prof@example.com")
	auth := map[string]string{"Authorization": "Bearer " + token}

	rec, resp := app.request(t, http.MethodPost, "/api/update-profile", map[string]interface{}{
		"firstName":          "Beatriz",
		"preferred_currency": "eur",
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Profile updated! Currency updated to EUR.", resp["message"])

	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "Beatriz", user["firstName"])
	assert.Equal(t, "User", user["lastName"])
	assert.Equal(t, "EUR", user["preferred_currency"])
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	app := newTestApp(t)
	app.registerUser(t, "taken@example.com")
	_, token := app.registerUser(t, "mover@example.com")

	rec, resp := app.request(t, http.MethodPost, "/api/update-profile", map[string]interface{}{
		"email": "taken@example.com",
	}, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already exists", resp["error"])
}

func TestUpdateCurrencyEndpoint(t *testing.T) {
	app := newTestApp(t)
	_, token := app.registerUser(t, "curr@example.com")
	auth := map[string]string{"Authorization": "Bearer " + token}

	rec, resp := app.request(t, http.MethodPost, "/api/update-currency", map[string]interface{}{
		"currency": "gbp",
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Currency preference updated!", resp["message"])
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "GBP", user["preferred_currency"])

	rec, resp = app.request(t, http.MethodPost, "/api/update-currency", map[string]interface{}{
		"currency": "DOLLARS",
	}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAccountTypeBodyIdentified(t *testing.T) {
	app := newTestApp(t)
	userID, _ := app.registerUser(t, "acct@example.com")

	rec, resp := app.request(t, http.MethodPost, "/api/update-account-type", map[string]interface{}{
		"userId":      userID,
		"accountType": "api",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Account type updated!", resp["message"])
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "api", user["accountType"])

	rec, resp = app.request(t, http.MethodPost, "/api/update-account-type", map[string]interface{}{
		"userId": userID,
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "User ID and account type required", resp["error"])
}

func TestDeleteAccountRequiresPassword(t *testing.T) {
	app := newTestApp(t)
	_, token := app.registerUser(t, "bye@example.com")
	auth := map[string]string{"Authorization": "Bearer " + token}

	rec, resp := app.request(t, http.MethodDelete, "/api/delete-account", map[string]interface{}{
		"password": "wrong",
	}, auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", resp["error"])

	rec, resp = app.request(t, http.MethodDelete, "/api/delete-account", map[string]interface{}{
		"password": "pass123",
	}, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Account deleted successfully. Contact admin to restore.", resp["message"])

	// The surviving token is now useless.
	rec, resp = app.request(t, http.MethodGet, "/api/user-profile", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account deleted or not found", resp["error"])
}
