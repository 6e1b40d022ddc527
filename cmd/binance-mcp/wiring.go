package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/quantive/binance-mcp/internal/account"
	"github.com/quantive/binance-mcp/internal/audit"
	"github.com/quantive/binance-mcp/internal/broker"
	"github.com/quantive/binance-mcp/internal/configstore"
	"github.com/quantive/binance-mcp/internal/logging"
	"github.com/quantive/binance-mcp/internal/secrets"
	"github.com/quantive/binance-mcp/internal/vault"
)

// components is the wired object graph shared by the subcommands.
type components struct {
	cfg      cliConfig
	store    *configstore.Store
	cipher   *secrets.AESCipher
	registry *account.Registry
	factory  *broker.Factory
	audit    *audit.Log // nil when withAudit is false
	vault    *vault.Vault
	logger   *slog.Logger
	doc      *configstore.Document
}

// buildComponents opens the config store under the config root and wires the
// vault. The encryption key is created on first use. withAudit controls
// whether the audit database is opened; short-lived read commands skip it.
func buildComponents(ctx context.Context, cfg cliConfig, withAudit bool) (*components, error) {
	store, err := configstore.NewStore(cfg.ConfigRoot, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, doc)

	key, err := secrets.LoadKey(cfg.ConfigRoot, true)
	if err != nil {
		return nil, err
	}
	cipher, err := secrets.NewAESCipher(key)
	if err != nil {
		return nil, err
	}

	registry := account.NewRegistry(store, cipher, logger)
	factory, err := broker.NewFactory(broker.DefaultCacheSize, logger)
	if err != nil {
		return nil, err
	}

	var auditLog *audit.Log
	if withAudit {
		auditLog, err = audit.Open(ctx, "file:"+cfg.auditDBPath())
		if err != nil {
			return nil, err
		}
	}

	return &components{
		cfg:      cfg,
		store:    store,
		cipher:   cipher,
		registry: registry,
		factory:  factory,
		audit:    auditLog,
		vault:    vault.New(registry, factory, auditLog, logger),
		logger:   logger,
		doc:      doc,
	}, nil
}

// Close releases cached clients and the audit database.
func (c *components) Close() {
	c.vault.Close()
	if c.audit != nil {
		_ = c.audit.Close()
	}
}

// newLogger builds the process logger. Logs go to stderr; stdout belongs to
// the MCP stdio transport. The CorrelationHandler injects account and tool
// attributes from the request context.
func newLogger(cfg cliConfig, doc *configstore.Document) *slog.Logger {
	level := doc.Server.LogLevel
	if cfg.LogLevel != "" {
		level = cfg.LogLevel
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fatalf prints an error and exits. Subcommand helpers use it for terminal
// failures after flag parsing.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// fail prints a vault error and exits with its mapped code.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCodeFor(err))
}
