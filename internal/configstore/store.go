package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/quantive/binance-mcp/pkg/schema"
)

const (
	// FileName is the store file name inside the config root.
	FileName = "config.json"

	lockRetryDelay = 50 * time.Millisecond
)

// Store persists the configuration document as a single JSON file under an
// explicit config root. Writes are atomic (temp file + rename) and mutating
// operations serialize through an advisory file lock, so two processes can
// never interleave a read-modify-write cycle.
type Store struct {
	root        string
	lockTimeout time.Duration
	readFile    func(string) ([]byte, error) // seam for read-failure tests
}

// NewStore creates a store rooted at configRoot. The directory is created
// if needed. lockTimeout bounds how long a mutation waits for the file lock;
// zero means the 5s default.
func NewStore(configRoot string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(configRoot, 0o700); err != nil {
		return nil, fmt.Errorf("create config root: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{root: configRoot, lockTimeout: lockTimeout, readFile: os.ReadFile}, nil
}

// Root returns the config root directory.
func (s *Store) Root() string { return s.root }

// Path returns the store file path.
func (s *Store) Path() string { return filepath.Join(s.root, FileName) }

func (s *Store) lockPath() string { return filepath.Join(s.root, FileName+".lock") }

// Load reads and validates the store document. A missing file yields the
// default empty document. A file that exists but cannot be parsed or that
// violates the document schema fails with STORE_CORRUPT. Metadata readers
// may race an in-progress rename, so a read failure is retried once — except
// permission errors, which no retry can fix.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	data, err := s.readFile(s.Path())
	if os.IsNotExist(err) {
		return DefaultDocument(), nil
	}
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("read store file: %w", err)
		}
		time.Sleep(lockRetryDelay)
		data, err = s.readFile(s.Path())
		if os.IsNotExist(err) {
			return DefaultDocument(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read store file: %w", err)
		}
	}
	return parseDocument(data)
}

func parseDocument(data []byte) (*Document, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeStoreCorrupt,
			"store file is not valid JSON").WithCause(err)
	}
	if doc.Accounts == nil {
		doc.Accounts = make(map[string]*Record)
	}
	return &doc, nil
}

// Save writes the document atomically: marshal to a temp file in the same
// directory, fsync, then rename over the store file. A crash mid-write
// leaves the prior file intact.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store document: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("rename store file: %w", err)
	}
	return nil
}

// Mutate runs fn inside an exclusive file-locked read-modify-write cycle.
// Lock acquisition is bounded by the store's lock timeout; exceeding it
// fails with STORE_LOCK_TIMEOUT instead of hanging. If fn returns an error
// the document is not saved.
func (s *Store) Mutate(ctx context.Context, fn func(doc *Document) error) error {
	fl := flock.New(s.lockPath())

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		return schema.NewErrorf(schema.ErrCodeStoreLockTimeout,
			"could not acquire store lock within %s", s.lockTimeout)
	}
	defer fl.Unlock()

	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(ctx, doc)
}

// Backup copies the current store file to a timestamped sibling and returns
// its path. An existing backup with the same name is never overwritten; a
// short disambiguator is appended instead. Runs under the file lock so the
// copy is a consistent snapshot.
func (s *Store) Backup(ctx context.Context) (string, error) {
	fl := flock.New(s.lockPath())

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		return "", schema.NewErrorf(schema.ErrCodeStoreLockTimeout,
			"could not acquire store lock within %s", s.lockTimeout)
	}
	defer fl.Unlock()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return "", schema.NewError(schema.ErrCodeStoreCorrupt, "no store file to back up")
	}
	if err != nil {
		return "", fmt.Errorf("read store file: %w", err)
	}

	name := fmt.Sprintf("config_backup_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.root, name)
	if _, err := os.Stat(path); err == nil {
		suffix := uuid.NewString()[:8]
		path = filepath.Join(s.root,
			fmt.Sprintf("config_backup_%s_%s.json", time.Now().Format("20060102_150405"), suffix))
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// ListBackups returns existing backup file paths sorted oldest-first by name
// (the timestamp prefix makes lexical order chronological).
func (s *Store) ListBackups() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "config_backup_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return matches, nil
}
