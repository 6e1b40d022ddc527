package main

import (
	"os"
	"path/filepath"
	"time"
)

// cliConfig holds process-level settings resolved before the config store is
// opened. Priority: flags > env vars > defaults. Everything else (accounts,
// log level, backup schedule) lives in the store document itself.
type cliConfig struct {
	ConfigRoot  string
	LogLevel    string // overrides the stored server log level when set
	LockTimeout time.Duration
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		ConfigRoot:  defaultConfigRoot(),
		LockTimeout: 5 * time.Second,
	}
}

func defaultConfigRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".binance-mcp"
	}
	return filepath.Join(home, ".config", "binance-mcp")
}

// loadCLIConfig applies env overrides on top of defaults. Flag values are
// applied afterwards by each subcommand.
func loadCLIConfig() cliConfig {
	cfg := defaultCLIConfig()
	if v := os.Getenv("BINANCE_MCP_CONFIG_ROOT"); v != "" {
		cfg.ConfigRoot = v
	}
	if v := os.Getenv("BINANCE_MCP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BINANCE_MCP_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}
	return cfg
}

func (c cliConfig) pidPath() string {
	return filepath.Join(c.ConfigRoot, "binance-mcp.pid")
}

func (c cliConfig) auditDBPath() string {
	return filepath.Join(c.ConfigRoot, "audit.db")
}
