package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"darkroom/internal/config"
)

// Store manages account and redemption key persistence backed by SQLite.
// Every mutating operation commits synchronously before returning, so a
// reload after restart observes the full record set.
type Store struct {
	db   *sql.DB
	path string

	initialBalance int64
	keyReward      int64
}

// Open initializes or connects to the ledger database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "ledger.db")
	// Pragmas go through the DSN so every connection in the pool gets them;
	// a plain Exec would only configure whichever connection served it.
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{
		db:             db,
		path:           dbPath,
		initialBalance: cfg.Credits.InitialBalance,
		keyReward:      cfg.Credits.KeyReward,
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the ledger database file path.
func (s *Store) Path() string {
	return s.path
}

// KeyReward returns the configured credit reward per redeemed key.
func (s *Store) KeyReward() int64 {
	return s.keyReward
}
