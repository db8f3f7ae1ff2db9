package bot

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"darkroom/internal/bot/pool"
	"darkroom/internal/config"
	"darkroom/internal/convstate"
	"darkroom/internal/ledger"
	"darkroom/internal/sequence"
	"darkroom/internal/services/comfy"
	"darkroom/internal/services/deepseek"
	"darkroom/internal/services/telegram"
	"darkroom/internal/taskqueue"
	"darkroom/internal/workflows"
)

// Messenger is the chat transport consumed by the bot.
type Messenger interface {
	Updates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoPath, caption string) error
	SendAlbum(ctx context.Context, chatID int64, originalPath, resultPath, caption string) error
	DownloadFile(ctx context.Context, fileID, destDir string) (string, error)
}

// ComfyService is the workflow backend consumed by execution runs.
type ComfyService interface {
	Submit(ctx context.Context, graph workflows.Graph) (string, error)
	AwaitCompletion(ctx context.Context, jobID string) comfy.Outcome
	StageInput(sourcePath string) (string, error)
	LocateOutput(prefix string) (string, error)
}

// Classifier maps free text to an action. A nil classifier disables the
// feature and free text gets the static fallback reply.
type Classifier interface {
	Classify(ctx context.Context, text, currentTemplate string, templates []string) (deepseek.Action, error)
}

// Deps collects the collaborators a Bot needs.
type Deps struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *ledger.Store
	Library    *workflows.Library
	Messenger  Messenger
	Comfy      ComfyService
	Classifier Classifier
}

// Bot drives the update intake loop, the per-chat conversation state, and
// the bounded execution pool.
type Bot struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *ledger.Store
	library    *workflows.Library
	messenger  Messenger
	comfy      ComfyService
	classifier Classifier

	queue  *taskqueue.Queue
	seq    *sequence.Allocator
	states *convstate.Tracker
	pool   *pool.Pool

	downloadDir string

	mu     sync.Mutex
	active map[int64]*workflows.Template

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles a bot from its collaborators.
func New(deps Deps) *Bot {
	return &Bot{
		cfg:         deps.Config,
		logger:      deps.Logger,
		store:       deps.Store,
		library:     deps.Library,
		messenger:   deps.Messenger,
		comfy:       deps.Comfy,
		classifier:  deps.Classifier,
		queue:       taskqueue.New(),
		seq:         &sequence.Allocator{},
		states:      convstate.NewTracker(),
		pool:        pool.New(deps.Config.Workers.Count, deps.Config.Workers.QueueDepth),
		downloadDir: filepath.Join(deps.Config.Paths.DataDir, "downloads"),
		active:      make(map[int64]*workflows.Template),
	}
}

// Start launches the worker pool and the update intake loop.
func (b *Bot) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.pool.Start(ctx)
	b.wg.Add(1)
	go b.intake(ctx)
	b.logger.Info("bot started",
		slog.Int("workers", b.cfg.Workers.Count),
		slog.Int("queue_depth", b.cfg.Workers.QueueDepth))
}

// Stop halts intake and waits for in-flight executions to finish.
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	b.pool.Stop()
	b.logger.Info("bot stopped")
}

// Queue exposes the live task queue, for status reporting.
func (b *Bot) Queue() *taskqueue.Queue {
	return b.queue
}

func (b *Bot) intake(ctx context.Context) {
	defer b.wg.Done()

	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := b.messenger.Updates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("poll updates", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		for _, update := range updates {
			// Advance past the update before handling so a crash-restart
			// never replays it.
			offset = update.UpdateID + 1
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}
	chatID := message.Chat.ID
	if !b.authorized(message.From.ID) {
		b.reply(ctx, chatID, msgUnauthorized)
		return
	}

	account, created, err := b.store.EnsureAccount(ctx, message.From.ID, message.From.Username)
	if err != nil {
		b.logger.Error("ensure account",
			slog.Int64("user_id", message.From.ID),
			slog.Any("error", err))
		b.reply(ctx, chatID, msgInternalError)
		return
	}
	if created {
		b.reply(ctx, chatID, msgWelcome(account.Balance))
	}

	switch {
	case len(message.Photo) > 0:
		b.handlePhoto(ctx, account, chatID, message)
	case message.Text != "":
		b.handleText(ctx, account, chatID, message.Text)
	}
}

func (b *Bot) authorized(userID int64) bool {
	allowed := b.cfg.Telegram.AuthorizedIDs
	if len(allowed) == 0 {
		return true
	}
	for _, id := range allowed {
		if id == userID {
			return true
		}
	}
	return false
}

// activeTemplate returns the chat's current template, falling back to the
// configured default.
func (b *Bot) activeTemplate(chatID int64) *workflows.Template {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tpl, ok := b.active[chatID]; ok {
		return tpl
	}
	return b.library.Default()
}

func (b *Bot) setActiveTemplate(chatID int64, tpl *workflows.Template) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[chatID] = tpl
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.messenger.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("send message", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
