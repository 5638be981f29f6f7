package model

import "time"

// ConnectionKind distinguishes centralized and decentralized venues
type ConnectionKind string

const (
	ConnectionKindCEX ConnectionKind = "cex"
	ConnectionKindDEX ConnectionKind = "dex"
)

// ConnectionStatus is the health state of an exchange connection
type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusError        ConnectionStatus = "error"
)

// ExchangeConnection represents a credentialed link to a trading venue
type ExchangeConnection struct {
	ID         string           `json:"id"`
	OwnerID    string           `json:"owner_id"`
	Name       string           `json:"name"`
	Exchange   string           `json:"exchange"`
	Kind       ConnectionKind   `json:"kind"`
	Status     ConnectionStatus `json:"status"`
	Balance    float64          `json:"balance"`
	LastSyncAt *time.Time       `json:"last_sync_at,omitempty"`
	LastError  string           `json:"last_error,omitempty"`

	// Never exposed
	EncryptedCredentials string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of the connection
func (c *ExchangeConnection) Clone() *ExchangeConnection {
	out := *c
	if c.LastSyncAt != nil {
		t := *c.LastSyncAt
		out.LastSyncAt = &t
	}
	return &out
}

// Public returns a copy with the credential material stripped
func (c *ExchangeConnection) Public() *ExchangeConnection {
	out := c.Clone()
	out.EncryptedCredentials = ""
	return out
}

// ConnectionRequest represents an exchange connect request
type ConnectionRequest struct {
	Name          string         `json:"name" binding:"required"`
	Exchange      string         `json:"exchange" binding:"required"`
	Kind          ConnectionKind `json:"kind" binding:"required,oneof=cex dex"`
	APIKey        string         `json:"api_key"`
	APISecret     string         `json:"api_secret"`
	Passphrase    string         `json:"passphrase"`
	WalletAddress string         `json:"wallet_address"`
}

// Credentials returns the credential material carried by the request
func (r *ConnectionRequest) Credentials() Credentials {
	return Credentials{
		APIKey:        r.APIKey,
		APISecret:     r.APISecret,
		Passphrase:    r.Passphrase,
		WalletAddress: r.WalletAddress,
	}
}

// Credentials holds decrypted venue credentials (in-memory only)
type Credentials struct {
	APIKey        string `json:"api_key,omitempty"`
	APISecret     string `json:"api_secret,omitempty"`
	Passphrase    string `json:"passphrase,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// Masked returns the API key with everything but the edges hidden
func (c Credentials) Masked() string {
	key := c.APIKey
	if key == "" {
		key = c.WalletAddress
	}
	if len(key) == 0 {
		return "<empty>"
	}
	if len(key) <= 4 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-2:]
}
