package configstore

import "time"

// Document is the full persisted configuration: account records plus server
// and MCP metadata, mirroring the on-disk config.json layout. Secret fields
// hold base64 ciphertext; everything else is plaintext metadata so the store
// stays listable even when a specific secret cannot be decrypted.
type Document struct {
	Accounts map[string]*Record `json:"accounts"`
	Server   ServerConfig       `json:"server"`
	MCP      MCPConfig          `json:"mcp"`
}

// Record is one persisted account entry.
type Record struct {
	EncryptedAPIKey    string    `json:"encrypted_api_key"`
	EncryptedAPISecret string    `json:"encrypted_api_secret"`
	MarketType         string    `json:"market_type"`
	Sandbox            bool      `json:"sandbox"`
	Description        string    `json:"description,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ServerConfig holds server-level settings stored alongside accounts.
type ServerConfig struct {
	LogLevel        string `json:"log_level"`
	BackupSchedule  string `json:"backup_schedule,omitempty"`
	BackupRetention int    `json:"backup_retention,omitempty"`
}

// MCPConfig identifies the MCP server in the store document.
type MCPConfig struct {
	ServerName string `json:"server_name"`
	Version    string `json:"version"`
}

// DefaultDocument returns the document used when no store file exists yet.
func DefaultDocument() *Document {
	return &Document{
		Accounts: make(map[string]*Record),
		Server: ServerConfig{
			LogLevel:        "info",
			BackupRetention: 10,
		},
		MCP: MCPConfig{
			ServerName: "binance-mcp",
			Version:    "1.0.0",
		},
	}
}
