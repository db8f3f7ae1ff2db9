package daemon_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"darkroom/internal/bot"
	"darkroom/internal/config"
	"darkroom/internal/daemon"
	"darkroom/internal/ledger"
	"darkroom/internal/logging"
	"darkroom/internal/services/comfy"
	"darkroom/internal/services/telegram"
	"darkroom/internal/testsupport"
	"darkroom/internal/workflows"
)

func newTestDaemon(t *testing.T, cfg *config.Config, store *ledger.Store) *daemon.Daemon {
	t.Helper()

	library, err := workflows.Load(cfg)
	if err != nil {
		t.Fatalf("workflows.Load: %v", err)
	}
	logger := logging.NewNop()
	b := bot.New(bot.Deps{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Library:   library,
		Messenger: telegram.New(cfg),
		Comfy:     comfy.New(cfg, logger),
	})
	d, err := daemon.New(cfg, store, logger, b)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestSecondInstanceIsRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Telegram.BaseURL = server.URL
	store := testsupport.MustOpenStore(t, cfg)

	first := newTestDaemon(t, cfg, store)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second := newTestDaemon(t, cfg, store)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance acquired the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("restart after release: %v", err)
	}
	second.Stop()
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil, logging.NewNop(), nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStatusReportsQueueAndPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Telegram.BaseURL = server.URL
	store := testsupport.MustOpenStore(t, cfg)

	d := newTestDaemon(t, cfg, store)
	status := d.Status()
	if status.Running {
		t.Fatal("daemon should not report running before Start")
	}
	if status.LedgerPath == "" || status.LockFilePath == "" {
		t.Fatalf("status missing paths: %+v", status)
	}
}
