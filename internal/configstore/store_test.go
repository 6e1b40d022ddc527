package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantive/binance-mcp/pkg/schema"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), 2*time.Second)
	require.NoError(t, err)
	return s
}

func testRecord() *Record {
	now := time.Now().UTC()
	return &Record{
		EncryptedAPIKey:    "Y2lwaGVydGV4dA==",
		EncryptedAPISecret: "c2VjcmV0Y2lwaGVy",
		MarketType:         "spot",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestStore_LoadMissingFileReturnsDefault(t *testing.T) {
	s := testStore(t)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Accounts)
	assert.Equal(t, "binance-mcp", doc.MCP.ServerName)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := DefaultDocument()
	doc.Accounts["spot_main"] = testRecord()
	require.NoError(t, s.Save(ctx, doc))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded.Accounts, "spot_main")
	assert.Equal(t, "spot", loaded.Accounts["spot_main"].MarketType)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_LoadRetriesTransientReadFailure(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := DefaultDocument()
	doc.Accounts["spot_main"] = testRecord()
	require.NoError(t, s.Save(ctx, doc))

	reads := 0
	s.readFile = func(path string) ([]byte, error) {
		reads++
		if reads == 1 {
			return nil, errors.New("interrupted system call")
		}
		return os.ReadFile(path)
	}

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, loaded.Accounts, "spot_main")
	assert.Equal(t, 2, reads)
}

func TestStore_LoadDoesNotRetryPermissionError(t *testing.T) {
	s := testStore(t)

	reads := 0
	s.readFile = func(path string) ([]byte, error) {
		reads++
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrPermission)
	}

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, reads)
}

func TestStore_LoadRejectsCorruptJSON(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStoreCorrupt, schema.CodeOf(err))
}

func TestStore_LoadRejectsSchemaViolation(t *testing.T) {
	s := testStore(t)
	// Record missing the required encrypted fields.
	raw := `{"accounts":{"bad":{"market_type":"spot"}}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(raw), 0o600))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStoreCorrupt, schema.CodeOf(err))
}

func TestStore_AtomicWriteLeavesPriorFileOnCrash(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := DefaultDocument()
	doc.Accounts["spot_main"] = testRecord()
	require.NoError(t, s.Save(ctx, doc))

	// Simulate a crash between temp-write and rename: a stray temp file
	// exists but the store file was never replaced.
	stray := filepath.Join(s.Root(), FileName+".tmp-crash")
	require.NoError(t, os.WriteFile(stray, []byte("{partial"), 0o600))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, loaded.Accounts, "spot_main")
}

func TestStore_MutatePersistsChanges(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.Mutate(ctx, func(doc *Document) error {
		doc.Accounts["a"] = testRecord()
		return nil
	})
	require.NoError(t, err)

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc.Accounts, "a")
}

func TestStore_MutateErrorDiscardsChanges(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sentinel := schema.NewError(schema.ErrCodeValidation, "nope")
	err := s.Mutate(ctx, func(doc *Document) error {
		doc.Accounts["a"] = testRecord()
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.NotContains(t, doc.Accounts, "a")
}

func TestStore_MutateLockTimeout(t *testing.T) {
	root := t.TempDir()
	slow, err := NewStore(root, 100*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()

	blocker := make(chan struct{})
	started := make(chan struct{})
	go func() {
		holder, _ := NewStore(root, time.Second)
		_ = holder.Mutate(ctx, func(doc *Document) error {
			close(started)
			<-blocker
			return nil
		})
	}()

	<-started
	err = slow.Mutate(ctx, func(doc *Document) error { return nil })
	close(blocker)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStoreLockTimeout, schema.CodeOf(err))
}

func TestStore_BackupMatchesStoreContents(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	doc := DefaultDocument()
	doc.Accounts["spot_main"] = testRecord()
	require.NoError(t, s.Save(ctx, doc))

	path, err := s.Backup(ctx)
	require.NoError(t, err)

	original, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	copied, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, copied)

	// A backup restores to an equal listing.
	var restored Document
	require.NoError(t, json.Unmarshal(copied, &restored))
	assert.Contains(t, restored.Accounts, "spot_main")
}

func TestStore_BackupNeverOverwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, DefaultDocument()))

	first, err := s.Backup(ctx)
	require.NoError(t, err)
	second, err := s.Backup(ctx)
	require.NoError(t, err)

	// Both exist even when taken within the same timestamp second.
	assert.NotEqual(t, first, second)
	_, err = os.Stat(first)
	require.NoError(t, err)
	_, err = os.Stat(second)
	require.NoError(t, err)

	backups, err := s.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestStore_BackupWithoutStoreFile(t *testing.T) {
	s := testStore(t)
	_, err := s.Backup(context.Background())
	require.Error(t, err)
}
