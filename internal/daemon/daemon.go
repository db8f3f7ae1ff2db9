package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"darkroom/internal/bot"
	"darkroom/internal/config"
	"darkroom/internal/ledger"
)

// Daemon runs the bot as a background service and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *ledger.Store
	bot    *bot.Bot

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	QueuedTasks  int
	LedgerPath   string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, b *bot.Bot) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || b == nil {
		return nil, errors.New("daemon requires config, store, logger, and bot")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "darkroomd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		bot:      b,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the bot.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another darkroom daemon instance is already running")
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.bot.Start(ctx)
	d.running.Store(true)
	d.logger.Info("daemon started", slog.String("lock", d.lockPath))
	return nil
}

// Stop halts the bot and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.bot.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", slog.Any("error", err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		QueuedTasks:  d.bot.Queue().Len(),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
