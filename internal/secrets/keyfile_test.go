package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantive/binance-mcp/pkg/schema"
)

func TestLoadKey_CreatesOnFirstUse(t *testing.T) {
	root := t.TempDir()

	key, err := LoadKey(root, true)
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	info, err := os.Stat(filepath.Join(root, KeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Second load returns the same key.
	again, err := LoadKey(root, false)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestLoadKey_MissingWithoutCreate(t *testing.T) {
	_, err := LoadKey(t.TempDir(), false)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeKeyMissing, schema.CodeOf(err))
}

func TestLoadKey_RejectsMalformedKeyFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, KeyFileName), []byte("not-base64!!"), 0o600))

	_, err := LoadKey(root, false)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeKeyMissing, schema.CodeOf(err))
}

func TestWriteKey_ReplacesExisting(t *testing.T) {
	root := t.TempDir()

	first, err := LoadKey(root, true)
	require.NoError(t, err)

	rotated, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, WriteKey(root, rotated))

	loaded, err := LoadKey(root, false)
	require.NoError(t, err)
	assert.Equal(t, rotated, loaded)
	assert.NotEqual(t, first, loaded)
}

func TestWriteKey_RejectsBadLength(t *testing.T) {
	err := WriteKey(t.TempDir(), []byte("short"))
	require.Error(t, err)
}

func TestStageKey_LeavesLiveKeyUntouched(t *testing.T) {
	root := t.TempDir()

	live, err := LoadKey(root, true)
	require.NoError(t, err)

	staged, err := GenerateKey()
	require.NoError(t, err)
	stagedPath, err := StageKey(root, staged)
	require.NoError(t, err)

	info, err := os.Stat(stagedPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The crash window between staging and promoting still loads the live key.
	loaded, err := LoadKey(root, false)
	require.NoError(t, err)
	assert.Equal(t, live, loaded)
}

func TestPromoteKey_ActivatesStagedKey(t *testing.T) {
	root := t.TempDir()

	_, err := LoadKey(root, true)
	require.NoError(t, err)

	staged, err := GenerateKey()
	require.NoError(t, err)
	stagedPath, err := StageKey(root, staged)
	require.NoError(t, err)

	require.NoError(t, PromoteKey(root))

	loaded, err := LoadKey(root, false)
	require.NoError(t, err)
	assert.Equal(t, staged, loaded)

	_, err = os.Stat(stagedPath)
	assert.True(t, os.IsNotExist(err), "staged file should be gone after promotion")
}

func TestPromoteKey_WithoutStagedKey(t *testing.T) {
	err := PromoteKey(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeKeyMissing, schema.CodeOf(err))
}

func TestDiscardStagedKey(t *testing.T) {
	root := t.TempDir()

	key, err := GenerateKey()
	require.NoError(t, err)
	stagedPath, err := StageKey(root, key)
	require.NoError(t, err)

	DiscardStagedKey(root)
	_, err = os.Stat(stagedPath)
	assert.True(t, os.IsNotExist(err))

	// Idempotent when nothing is staged.
	DiscardStagedKey(root)
}
