package testsupport

import (
	"context"
	"testing"

	"darkroom/internal/config"
	"darkroom/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewAccount creates an account for tests using the provided store.
func NewAccount(t testing.TB, store *ledger.Store, id int64, username string) *ledger.Account {
	t.Helper()

	account, _, err := store.EnsureAccount(context.Background(), id, username)
	if err != nil {
		t.Fatalf("store.EnsureAccount: %v", err)
	}
	return account
}
