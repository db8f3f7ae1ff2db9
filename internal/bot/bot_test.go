package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"darkroom/internal/convstate"
	"darkroom/internal/ledger"
	"darkroom/internal/logging"
	"darkroom/internal/services/comfy"
	"darkroom/internal/services/telegram"
	"darkroom/internal/testsupport"
	"darkroom/internal/workflows"
)

type fakeMessenger struct {
	mu       sync.Mutex
	messages []string
	albums   int
	photos   int
	dir      string
}

func (f *fakeMessenger) Updates(context.Context, int64) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeMessenger) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeMessenger) SendPhoto(context.Context, int64, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos++
	return nil
}

func (f *fakeMessenger) SendAlbum(context.Context, int64, string, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums++
	return nil
}

func (f *fakeMessenger) DownloadFile(_ context.Context, fileID, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(destDir, "temp_"+fileID+".jpg")
	if err := os.WriteFile(target, []byte("jpeg"), 0o644); err != nil {
		return "", err
	}
	return target, nil
}

func (f *fakeMessenger) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func (f *fakeMessenger) albumCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.albums
}

type fakeComfy struct {
	mu        sync.Mutex
	submits   int
	submitErr error
	outcome   comfy.Outcome
}

func (f *fakeComfy) Submit(context.Context, workflows.Graph) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return fmt.Sprintf("job-%d", f.submits), nil
}

func (f *fakeComfy) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func (f *fakeComfy) AwaitCompletion(context.Context, string) comfy.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

func (f *fakeComfy) StageInput(sourcePath string) (string, error) {
	return filepath.Base(sourcePath), nil
}

func (f *fakeComfy) LocateOutput(prefix string) (string, error) {
	return "/tmp/" + prefix + "_00001_.png", nil
}

func newTestBot(t *testing.T, opts ...testsupport.ConfigOption) (*Bot, *fakeMessenger, *fakeComfy, *ledger.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	library, err := workflows.Load(cfg)
	if err != nil {
		t.Fatalf("workflows.Load: %v", err)
	}
	messenger := &fakeMessenger{}
	backend := &fakeComfy{outcome: comfy.OutcomeCompleted}
	b := New(Deps{
		Config:    cfg,
		Logger:    logging.NewNop(),
		Store:     store,
		Library:   library,
		Messenger: messenger,
		Comfy:     backend,
	})
	return b, messenger, backend, store
}

func photoUpdate(userID int64) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			From:  &telegram.User{ID: userID, Username: "tester"},
			Chat:  telegram.Chat{ID: userID},
			Photo: []telegram.PhotoSize{{FileID: "photo-1", FileSize: 2048}},
		},
	}
}

func textUpdate(userID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			From: &telegram.User{ID: userID, Username: "tester"},
			Chat: telegram.Chat{ID: userID},
			Text: text,
		},
	}
}

func waitFor(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPhotoRejectedWhenBalanceTooLow(t *testing.T) {
	// Default template runs 3 iterations at 5 credits, so 10 cannot cover it.
	b, messenger, backend, _ := newTestBot(t, testsupport.WithInitialBalance(10))
	b.pool.Start(context.Background())
	defer b.pool.Stop()

	b.handleUpdate(context.Background(), photoUpdate(42))

	if got := b.seq.Current(); got != 0 {
		t.Fatalf("sequence allocated for rejected task: %d", got)
	}
	if got := b.queue.Len(); got != 0 {
		t.Fatalf("queue length = %d, want 0", got)
	}
	backend.mu.Lock()
	submits := backend.submits
	backend.mu.Unlock()
	if submits != 0 {
		t.Fatalf("backend received %d submits, want 0", submits)
	}
	found := false
	for _, msg := range messenger.sent() {
		if strings.Contains(msg, "costs 15") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no insufficient balance message in %q", messenger.sent())
	}
}

func TestPhotoRunSettlesPerIteration(t *testing.T) {
	b, messenger, _, store := newTestBot(t, testsupport.WithInitialBalance(20))
	b.pool.Start(context.Background())
	defer b.pool.Stop()

	b.handleUpdate(context.Background(), photoUpdate(42))

	waitFor(t, "run to finish", func() bool { return b.queue.Len() == 0 && messenger.albumCount() == 3 })

	account, err := store.GetAccount(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != 5 {
		t.Fatalf("balance = %d, want 5 after three debits of 5", account.Balance)
	}
	if got := b.seq.Current(); got != 1 {
		t.Fatalf("sequence = %d, want 1", got)
	}
}

func TestAdminRunSkipsBilling(t *testing.T) {
	b, messenger, _, store := newTestBot(t, testsupport.WithInitialBalance(0))
	b.pool.Start(context.Background())
	defer b.pool.Stop()

	testsupport.NewAccount(t, store, 42, "boss")
	if err := store.SetRole(context.Background(), 42, ledger.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	b.handleUpdate(context.Background(), photoUpdate(42))

	waitFor(t, "run to finish", func() bool { return b.queue.Len() == 0 && messenger.albumCount() == 3 })

	account, err := store.GetAccount(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != 0 {
		t.Fatalf("admin balance changed to %d", account.Balance)
	}
}

func TestFailedIterationIsNotBilled(t *testing.T) {
	b, messenger, backend, store := newTestBot(t, testsupport.WithInitialBalance(20))
	backend.outcome = comfy.OutcomeFailed
	b.pool.Start(context.Background())
	defer b.pool.Stop()

	b.handleUpdate(context.Background(), photoUpdate(42))

	waitFor(t, "run to finish", func() bool {
		for _, msg := range messenger.sent() {
			if strings.Contains(msg, "Task finished") {
				return true
			}
		}
		return false
	})

	account, err := store.GetAccount(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != 20 {
		t.Fatalf("balance = %d, want untouched 20", account.Balance)
	}
	if messenger.albumCount() != 0 {
		t.Fatalf("albums sent for failed iterations: %d", messenger.albumCount())
	}
}

func TestSubmitFailuresDoNotAbortRun(t *testing.T) {
	b, messenger, backend, store := newTestBot(t, testsupport.WithInitialBalance(20))
	backend.submitErr = errors.New("connection refused")
	b.pool.Start(context.Background())
	defer b.pool.Stop()

	b.handleUpdate(context.Background(), photoUpdate(42))

	waitFor(t, "run to finish", func() bool {
		for _, msg := range messenger.sent() {
			if strings.Contains(msg, "Task finished") {
				return true
			}
		}
		return false
	})

	if got := backend.submitCount(); got != 3 {
		t.Fatalf("submits = %d, want one per configured iteration", got)
	}
	account, err := store.GetAccount(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != 20 {
		t.Fatalf("balance = %d, want untouched 20", account.Balance)
	}
	if messenger.albumCount() != 0 {
		t.Fatalf("albums sent despite failed submits: %d", messenger.albumCount())
	}
}

func TestDebitErrorStopsRunWithNotice(t *testing.T) {
	b, messenger, _, store := newTestBot(t, testsupport.WithInitialBalance(20))

	account := testsupport.NewAccount(t, store, 42, "tester")
	ticket := b.queue.Enqueue(account.ID, b.seq.Next())
	defer ticket.Release()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	params := runParams{
		runID:    "run-1",
		account:  account,
		chatID:   42,
		ticket:   ticket,
		template: b.library.Default(),
	}
	ok, stop := b.runIteration(context.Background(), b.logger, params, iterationSpec{
		inputImage: "temp_photo.jpg",
		namePrefix: "temp_photo_A",
		outputPath: "AutoOutput/temp_photo_A",
		album:      true,
	})

	if !ok || !stop {
		t.Fatalf("ok=%v stop=%v, want delivered iteration and stopped run", ok, stop)
	}
	found := false
	for _, msg := range messenger.sent() {
		if msg == msgRunStoppedBilling {
			found = true
		}
	}
	if !found {
		t.Fatalf("no billing stop notice in %q", messenger.sent())
	}
}

func TestKeyRedemptionFlow(t *testing.T) {
	b, messenger, _, store := newTestBot(t, testsupport.WithInitialBalance(10))

	ctx := context.Background()
	b.handleUpdate(ctx, textUpdate(42, "/key"))

	codes, err := store.GenerateKeys(ctx, 1)
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	b.handleUpdate(ctx, textUpdate(42, codes[0]))

	account, err := store.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != 10+store.KeyReward() {
		t.Fatalf("balance = %d, want %d", account.Balance, 10+store.KeyReward())
	}
	if account.Role != ledger.RoleMember {
		t.Fatalf("role = %s, want member", account.Role)
	}
	if _, pending := b.states.Peek(42); pending {
		t.Fatal("conversation state not cleared after redemption")
	}
	found := false
	for _, msg := range messenger.sent() {
		if strings.Contains(msg, "Key accepted") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no redemption confirmation in %q", messenger.sent())
	}
}

func TestInvalidKeyLeavesBalanceAlone(t *testing.T) {
	b, messenger, _, store := newTestBot(t, testsupport.WithInitialBalance(10))

	ctx := context.Background()
	b.handleUpdate(ctx, textUpdate(42, "/key"))
	b.handleUpdate(ctx, textUpdate(42, "NOTAREALKEY12345"))

	account, err := store.GetAccount(ctx, 42)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != 10 {
		t.Fatalf("balance = %d, want 10", account.Balance)
	}
	if _, pending := b.states.Peek(42); pending {
		t.Fatal("conversation state should be cleared after a failed attempt")
	}
	found := false
	for _, msg := range messenger.sent() {
		if msg == msgKeyInvalid {
			found = true
		}
	}
	if !found {
		t.Fatalf("no invalid key message in %q", messenger.sent())
	}
}

func TestTemplateSwitchCommand(t *testing.T) {
	b, messenger, _, _ := newTestBot(t)

	b.handleUpdate(context.Background(), textUpdate(42, "/Edit"))

	if got := b.activeTemplate(42).Name; got != "image_edit" {
		t.Fatalf("active template = %s, want image_edit", got)
	}
	found := false
	for _, msg := range messenger.sent() {
		if strings.Contains(msg, "Switched to") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no switch confirmation in %q", messenger.sent())
	}
}

func TestEditFlowParksPhotoThenRuns(t *testing.T) {
	b, messenger, backend, _ := newTestBot(t, testsupport.WithInitialBalance(10))
	b.pool.Start(context.Background())
	defer b.pool.Stop()

	ctx := context.Background()
	b.handleUpdate(ctx, textUpdate(42, "/Edit"))
	b.handleUpdate(ctx, photoUpdate(42))

	state, pending := b.states.Peek(42)
	if !pending || state.Kind != convstate.KindAwaitingEdit {
		t.Fatalf("expected awaiting edit state, got %+v pending=%v", state, pending)
	}
	backend.mu.Lock()
	submits := backend.submits
	backend.mu.Unlock()
	if submits != 0 {
		t.Fatal("photo under edit template must not start a run")
	}

	b.handleUpdate(ctx, textUpdate(42, "remove the lamp post"))

	waitFor(t, "edit run to finish", func() bool { return b.queue.Len() == 0 && messenger.albumCount() == 1 })
	if _, pending := b.states.Peek(42); pending {
		t.Fatal("state should be consumed by the edit run")
	}
}

func TestUnauthorizedUserIsRefused(t *testing.T) {
	b, messenger, _, _ := newTestBot(t)

	b.cfg.Telegram.AuthorizedIDs = []int64{7}
	b.handleUpdate(context.Background(), textUpdate(42, "/help"))

	sent := messenger.sent()
	if len(sent) != 1 || sent[0] != msgUnauthorized {
		t.Fatalf("sent = %q, want only the unauthorized notice", sent)
	}
}
