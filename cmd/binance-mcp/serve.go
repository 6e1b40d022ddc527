package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/quantive/binance-mcp/internal/backup"
	"github.com/quantive/binance-mcp/pkg/mcp"
)

// runServe runs the MCP server on stdio until stdin closes or a signal arrives.
func runServe(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error (default: stored setting)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, true)
	if err != nil {
		fail(err)
	}
	defer comps.Close()

	if err := writePIDFile(cfg.pidPath()); err != nil {
		fail(err)
	}
	defer os.Remove(cfg.pidPath())

	// Scheduled store backups, when configured.
	if spec := comps.doc.Server.BackupSchedule; spec != "" {
		scheduler, err := backup.NewScheduler(comps.store, comps.audit, spec, comps.doc.Server.BackupRetention, comps.logger)
		if err != nil {
			fatalf("invalid backup schedule: %v", err)
		}
		if err := scheduler.Start(ctx); err != nil {
			fail(err)
		}
		defer scheduler.Stop()
	}

	srv := mcp.NewVaultServer(mcp.VaultServerDeps{
		Vault:  comps.vault,
		Logger: comps.logger,
	})

	comps.logger.Info("server started",
		slog.String("config_root", cfg.ConfigRoot),
		slog.Int("pid", os.Getpid()),
	)

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		comps.logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	comps.logger.Info("server stopped")
}

// writePIDFile records the current pid, refusing to clobber a live server.
func writePIDFile(path string) error {
	if pid, alive := readAlivePID(path); alive {
		return fmt.Errorf("server already running (PID %d)", pid)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
