package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantive/binance-mcp/internal/configstore"
)

func newTestStore(t *testing.T) *configstore.Store {
	t.Helper()
	store, err := configstore.NewStore(t.TempDir(), 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), configstore.DefaultDocument()))
	return store
}

func TestNewScheduler_RejectsBadCron(t *testing.T) {
	store := newTestStore(t)
	_, err := NewScheduler(store, nil, "not a cron expression", 5, nil)
	require.Error(t, err)
}

func TestScheduler_RunOnce(t *testing.T) {
	store := newTestStore(t)
	s, err := NewScheduler(store, nil, "0 3 * * *", 5, nil)
	require.NoError(t, err)

	path, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)

	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestScheduler_PrunesOldBackups(t *testing.T) {
	store := newTestStore(t)
	s, err := NewScheduler(store, nil, "0 3 * * *", 2, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := s.RunOnce(ctx)
		require.NoError(t, err)
	}

	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestScheduler_RetentionZeroKeepsAll(t *testing.T) {
	store := newTestStore(t)
	s, err := NewScheduler(store, nil, "0 3 * * *", 0, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.RunOnce(ctx)
		require.NoError(t, err)
	}

	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 3)
}

func TestScheduler_NextRun(t *testing.T) {
	store := newTestStore(t)
	s, err := NewScheduler(store, nil, "0 3 * * *", 5, nil)
	require.NoError(t, err)

	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	next, err := s.NextRun(from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestScheduler_StartStop(t *testing.T) {
	store := newTestStore(t)
	s, err := NewScheduler(store, nil, "* * * * *", 5, nil)
	require.NoError(t, err)
	s.interval = 10 * time.Millisecond

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	// Stop is idempotent.
	require.NoError(t, s.Stop())
}

func TestScheduler_TickRunsDueBackup(t *testing.T) {
	store := newTestStore(t)
	s, err := NewScheduler(store, nil, "* * * * *", 5, nil)
	require.NoError(t, err)

	// Force the schedule to be due.
	s.nextRun = time.Now().UTC().Add(-time.Minute)
	s.tick(context.Background())

	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
	assert.True(t, s.nextRun.After(time.Now().UTC().Add(-time.Second)))
}
