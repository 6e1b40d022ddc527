package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quantive/binance-mcp/internal/audit"
	"github.com/quantive/binance-mcp/internal/configstore"
)

// Scheduler runs periodic backups of the config store on a cron schedule and
// prunes old backup files beyond the retention count.
type Scheduler struct {
	store     *configstore.Store
	audit     *audit.Log // optional; nil disables auditing
	parser    cron.Parser
	logger    *slog.Logger
	spec      string
	retention int
	interval  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	nextRun time.Time
}

// NewScheduler creates a backup scheduler. spec is a standard five-field cron
// expression. retention is the number of backup files to keep; zero or
// negative disables pruning. auditLog may be nil.
func NewScheduler(store *configstore.Store, auditLog *audit.Log, spec string, retention int, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse backup schedule %q: %w", spec, err)
	}
	return &Scheduler{
		store:     store,
		audit:     auditLog,
		parser:    parser,
		logger:    logger,
		spec:      spec,
		retention: retention,
		interval:  60 * time.Second,
	}, nil
}

// Start launches the background backup loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("backup scheduler already started")
	}

	next, err := s.NextRun(time.Now().UTC())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.nextRun = next

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(loopCtx)
	s.logger.Info("backup scheduler started",
		slog.String("schedule", s.spec),
		slog.Int("retention", s.retention),
	)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs a backup if the schedule is due and computes the next run time.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	due := !s.nextRun.After(time.Now().UTC())
	s.mu.Unlock()
	if !due {
		return
	}

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled backup failed", slog.String("error", err.Error()))
	}

	next, err := s.NextRun(time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to compute next backup time", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	s.nextRun = next
	s.mu.Unlock()
}

// RunOnce takes one backup, prunes old files, and returns the backup path.
// Also used by the CLI backup command.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	path, err := s.store.Backup(ctx)
	if err != nil {
		return "", err
	}

	s.logger.Info("backup created", slog.String("path", path))
	if s.audit != nil {
		if aerr := s.audit.Append(ctx, "", audit.EventBackupCreated,
			map[string]any{"path": path}); aerr != nil {
			s.logger.Warn("audit append failed", slog.String("error", aerr.Error()))
		}
	}

	if err := s.prune(); err != nil {
		s.logger.Warn("backup pruning failed", slog.String("error", err.Error()))
	}
	return path, nil
}

// prune deletes the oldest backups beyond the retention count.
func (s *Scheduler) prune() error {
	if s.retention <= 0 {
		return nil
	}
	backups, err := s.store.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) <= s.retention {
		return nil
	}
	for _, path := range backups[:len(backups)-s.retention] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old backup %s: %w", path, err)
		}
		s.logger.Debug("pruned old backup", slog.String("path", path))
	}
	return nil
}

// NextRun computes the next scheduled backup time after from.
func (s *Scheduler) NextRun(from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(s.spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse backup schedule %q: %w", s.spec, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("backup scheduler stopped")
	return nil
}
