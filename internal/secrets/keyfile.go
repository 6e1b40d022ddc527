package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantive/binance-mcp/pkg/schema"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// KeyFileName is the key file name inside the config root.
const KeyFileName = ".key"

// stagedKeyFileName holds a rotation's replacement key until it is promoted.
const stagedKeyFileName = ".key.new"

// LoadKey reads the encryption key from the config root. If the key file is
// absent and create is true, a fresh key is generated with a cryptographically
// secure random source and written with owner-only permissions. With create
// false, a missing key fails with KEY_MISSING.
func LoadKey(configRoot string, create bool) ([]byte, error) {
	path := filepath.Join(configRoot, KeyFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(key) != KeySize {
			return nil, schema.NewErrorf(schema.ErrCodeKeyMissing,
				"key file %s is not a valid %d-byte key", path, KeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if !create {
		return nil, schema.NewErrorf(schema.ErrCodeKeyMissing, "no encryption key at %s", path)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := WriteKey(configRoot, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// WriteKey persists the key to the config root with mode 0600, replacing any
// existing key file. Used on first run.
func WriteKey(configRoot string, key []byte) error {
	return writeKeyFile(configRoot, KeyFileName, key)
}

// StageKey writes the key to a sidecar file next to the live key file and
// returns its path. Key rotation stages the replacement key before committing
// the re-encrypted store, so a crash at any point leaves a key on disk that
// can decrypt the store: the live key before the store is rewritten, the
// staged key after.
func StageKey(configRoot string, key []byte) (string, error) {
	if err := writeKeyFile(configRoot, stagedKeyFileName, key); err != nil {
		return "", err
	}
	return filepath.Join(configRoot, stagedKeyFileName), nil
}

// PromoteKey renames the staged key file over the live one. Rename is atomic,
// so the live key file is never missing or partially written.
func PromoteKey(configRoot string) error {
	staged := filepath.Join(configRoot, stagedKeyFileName)
	if _, err := os.Stat(staged); err != nil {
		return schema.NewErrorf(schema.ErrCodeKeyMissing, "no staged key at %s", staged)
	}
	if err := os.Rename(staged, filepath.Join(configRoot, KeyFileName)); err != nil {
		return fmt.Errorf("promote staged key: %w", err)
	}
	return nil
}

// DiscardStagedKey removes a staged key file if one exists.
func DiscardStagedKey(configRoot string) {
	_ = os.Remove(filepath.Join(configRoot, stagedKeyFileName))
}

func writeKeyFile(configRoot, name string, key []byte) error {
	if len(key) != KeySize {
		return schema.NewErrorf(schema.ErrCodeKeyMissing,
			"refusing to write %d-byte key, want %d", len(key), KeySize)
	}
	if err := os.MkdirAll(configRoot, 0o700); err != nil {
		return fmt.Errorf("create config root: %w", err)
	}
	path := filepath.Join(configRoot, name)
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
