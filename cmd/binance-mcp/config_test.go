package main

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantive/binance-mcp/pkg/schema"
)

func TestLoadCLIConfigEnvOverrides(t *testing.T) {
	t.Setenv("BINANCE_MCP_CONFIG_ROOT", "/tmp/custom-root")
	t.Setenv("BINANCE_MCP_LOG_LEVEL", "debug")
	t.Setenv("BINANCE_MCP_LOCK_TIMEOUT", "30s")

	cfg := loadCLIConfig()
	assert.Equal(t, "/tmp/custom-root", cfg.ConfigRoot)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
	assert.Equal(t, filepath.Join("/tmp/custom-root", "binance-mcp.pid"), cfg.pidPath())
	assert.Equal(t, filepath.Join("/tmp/custom-root", "audit.db"), cfg.auditDBPath())
}

func TestLoadCLIConfigBadLockTimeout(t *testing.T) {
	t.Setenv("BINANCE_MCP_LOCK_TIMEOUT", "not-a-duration")

	cfg := loadCLIConfig()
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, 2, exitCodeFor(schema.NewError(schema.ErrCodeValidation, "bad input")))
	assert.Equal(t, 3, exitCodeFor(schema.NewError(schema.ErrCodeAccountNotFound, "missing")))
	assert.Equal(t, 1, exitCodeFor(schema.NewError(schema.ErrCodeDecryption, "nope")))
	assert.Equal(t, 1, exitCodeFor(os.ErrClosed))
}

func TestPromptSecretFallsBackOutsideTerminal(t *testing.T) {
	// Test processes never have a terminal on stdin, so the line-reading
	// fallback is taken and the value comes from the supplied reader.
	in := bufio.NewReader(strings.NewReader("hush\n"))
	assert.Equal(t, "hush", promptSecret(in, "API secret: "))
}

func TestReadAlivePID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pid")

	_, alive := readAlivePID(path)
	assert.False(t, alive, "missing pid file")

	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
	_, alive = readAlivePID(path)
	assert.False(t, alive, "malformed pid file")

	// Current process is certainly alive.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))
	pid, alive := readAlivePID(path)
	assert.True(t, alive)
	assert.Equal(t, os.Getpid(), pid)
}
