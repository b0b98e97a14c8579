package models

import "time"

// MT5Account is a stored broker link. The investor password is persisted
// only as a bcrypt hash and is never returned to clients.
type MT5Account struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"-"`
	BrokerName       string    `json:"brokerName"`
	AccountID        string    `json:"accountId"`
	ServerName       string    `json:"serverName"`
	InvestorPassword string    `json:"-"`
	ConnectionStatus string    `json:"connectionStatus"`
	LastConnected    time.Time `json:"lastConnected,omitzero"`
	CreatedAt        time.Time `json:"createdAt"`
}

// MT5CredentialsInput is the payload for linking a broker account.
type MT5CredentialsInput struct {
	BrokerName       string `json:"brokerName" validate:"required,max=128"`
	AccountID        string `json:"accountId" validate:"required,max=64"`
	ServerName       string `json:"serverName" validate:"required,max=128"`
	InvestorPassword string `json:"investorPassword" validate:"required,min=4"`
}
