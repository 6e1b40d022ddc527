package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/quantive/binance-mcp/internal/audit"
	"github.com/quantive/binance-mcp/internal/secrets"
)

// runBackup takes an immediate backup of the config store.
func runBackup(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	comps, err := buildComponents(ctx, cfg, true)
	if err != nil {
		fail(err)
	}
	defer comps.Close()

	path, err := comps.store.Backup(ctx)
	if err != nil {
		fail(err)
	}
	if aerr := comps.audit.Append(ctx, "", audit.EventBackupCreated,
		map[string]any{"path": path, "trigger": "cli"}); aerr != nil {
		comps.logger.Warn("audit append failed", "error", aerr.Error())
	}
	fmt.Printf("Backup written to %s\n", path)
}

// runRotateKey generates a fresh encryption key and re-encrypts every stored
// account with it. The new key is staged on disk before the re-encrypted
// store is committed, so a crash at any point leaves a key file (live or
// staged) that can decrypt whatever store state is on disk. A backup is taken
// first as a second line of defense.
func runRotateKey(args []string) {
	cfg := loadCLIConfig()
	fs := flag.NewFlagSet("rotate-key", flag.ExitOnError)
	fs.StringVar(&cfg.ConfigRoot, "config-root", cfg.ConfigRoot, "config directory")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx := context.Background()
	comps, err := buildComponents(ctx, cfg, true)
	if err != nil {
		fail(err)
	}
	defer comps.Close()

	backupPath, err := comps.store.Backup(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Store backed up to %s\n", backupPath)

	newKey, err := secrets.GenerateKey()
	if err != nil {
		fail(err)
	}
	newCipher, err := secrets.NewAESCipher(newKey)
	if err != nil {
		fail(err)
	}

	stagedPath, err := secrets.StageKey(cfg.ConfigRoot, newKey)
	if err != nil {
		fail(err)
	}

	if err := comps.registry.ReencryptAll(ctx, newCipher); err != nil {
		secrets.DiscardStagedKey(cfg.ConfigRoot)
		fail(err)
	}
	if err := secrets.PromoteKey(cfg.ConfigRoot); err != nil {
		fatalf("accounts were re-encrypted but the new key could not be promoted: %v\nthe new key is at %s; move it over the live key file, or restore from %s with the old key", err, stagedPath, backupPath)
	}

	// Cached clients hold credentials decrypted with the old key.
	comps.vault.Close()

	if aerr := comps.audit.Append(ctx, "", audit.EventKeyRotated, nil); aerr != nil {
		comps.logger.Warn("audit append failed", "error", aerr.Error())
	}
	fmt.Println("Encryption key rotated")
}
