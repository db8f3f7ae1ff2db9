package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"darkroom/internal/convstate"
	"darkroom/internal/ledger"
	"darkroom/internal/services/deepseek"
	"darkroom/internal/services/telegram"
	"darkroom/internal/workflows"
)

// handlePhoto routes an inbound photo. Under the edit template the photo is
// parked until the instruction text arrives; every other template starts an
// execution run immediately.
func (b *Bot) handlePhoto(ctx context.Context, account *ledger.Account, chatID int64, message *telegram.Message) {
	photo, ok := telegram.LargestPhoto(message.Photo)
	if !ok {
		return
	}

	tpl := b.activeTemplate(chatID)
	edit := b.library.Edit()
	if edit != nil && tpl.Name == edit.Name {
		localPath, err := b.messenger.DownloadFile(ctx, photo.FileID, b.downloadDir)
		if err != nil {
			b.logger.Warn("download photo", slog.Int64("chat_id", chatID), slog.Any("error", err))
			b.reply(ctx, chatID, msgDownloadFailed)
			return
		}
		replaced := b.states.Set(chatID, convstate.State{
			Kind:      convstate.KindAwaitingEdit,
			AccountID: account.ID,
			ImagePath: localPath,
			Template:  tpl.Name,
		})
		if replaced.Kind == convstate.KindAwaitingEdit {
			b.reply(ctx, chatID, msgEditImageReplaced)
		}
		b.reply(ctx, chatID, msgAwaitingEditPrompt)
		return
	}

	if !b.checkBalance(ctx, account, chatID, tpl) {
		return
	}

	localPath, err := b.messenger.DownloadFile(ctx, photo.FileID, b.downloadDir)
	if err != nil {
		b.logger.Warn("download photo", slog.Int64("chat_id", chatID), slog.Any("error", err))
		b.reply(ctx, chatID, msgDownloadFailed)
		return
	}
	b.startRun(ctx, account, chatID, tpl, localPath, "")
}

// handleText resolves pending conversation state first, then the command
// table, then the classifier, then the static fallback.
func (b *Bot) handleText(ctx context.Context, account *ledger.Account, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if state, ok := b.states.Take(chatID); ok {
		switch state.Kind {
		case convstate.KindAwaitingKey:
			b.redeemKey(ctx, account, chatID, text)
			return
		case convstate.KindAwaitingEdit:
			tpl, ok := b.library.Get(state.Template)
			if !ok {
				tpl = b.library.Edit()
			}
			if tpl == nil {
				b.reply(ctx, chatID, msgInternalError)
				return
			}
			if !b.checkBalance(ctx, account, chatID, tpl) {
				return
			}
			b.startRun(ctx, account, chatID, tpl, state.ImagePath, text)
			return
		}
	}

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, account, chatID, text)
		return
	}

	b.handleFreeText(ctx, account, chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, account *ledger.Account, chatID int64, text string) {
	fields := strings.Fields(text)
	command := fields[0]

	switch command {
	case "/start", "/help":
		b.reply(ctx, chatID, msgHelp(b.library))
	case "/info":
		b.reply(ctx, chatID, msgAccountInfo(account, b.activeTemplate(chatID)))
	case "/points":
		b.reply(ctx, chatID, msgBalance(account.Balance))
	case "/task":
		b.replyTaskList(ctx, account, chatID)
	case "/key":
		replaced := b.states.Set(chatID, convstate.State{
			Kind:      convstate.KindAwaitingKey,
			AccountID: account.ID,
		})
		if replaced.Kind == convstate.KindAwaitingEdit {
			b.reply(ctx, chatID, msgEditCanceled)
		}
		b.reply(ctx, chatID, msgAwaitingKey)
	case "/generate_keys":
		b.generateKeys(ctx, account, chatID, fields[1:])
	default:
		if tpl, ok := b.library.ByCommand(command); ok {
			b.setActiveTemplate(chatID, tpl)
			b.reply(ctx, chatID, msgTemplateSwitched(tpl))
			return
		}
		b.reply(ctx, chatID, msgUnknownCommand)
	}
}

func (b *Bot) handleFreeText(ctx context.Context, account *ledger.Account, chatID int64, text string) {
	if b.classifier == nil {
		b.reply(ctx, chatID, msgFallback)
		return
	}

	current := b.activeTemplate(chatID)
	action, err := b.classifier.Classify(ctx, text, current.DisplayName, b.library.DisplayNames())
	if err != nil {
		b.logger.Warn("classify text", slog.Int64("chat_id", chatID), slog.Any("error", err))
		b.reply(ctx, chatID, msgFallback)
		return
	}

	switch action.Kind {
	case deepseek.ActionSwitchTemplate:
		tpl, ok := b.library.ByDisplayName(action.Template)
		if !ok {
			b.reply(ctx, chatID, msgUnknownTemplate(action.Template))
			return
		}
		b.setActiveTemplate(chatID, tpl)
		b.reply(ctx, chatID, msgTemplateSwitched(tpl))
	case deepseek.ActionGenerateImage:
		b.startTextToImage(ctx, account, chatID, action.Prompt)
	case deepseek.ActionListTasks:
		b.replyTaskList(ctx, account, chatID)
	default:
		reply := strings.TrimSpace(action.Reply)
		if reply == "" {
			reply = msgFallback
		}
		b.reply(ctx, chatID, reply)
	}
}

func (b *Bot) redeemKey(ctx context.Context, account *ledger.Account, chatID int64, code string) {
	ok, err := b.store.Redeem(ctx, strings.ToUpper(strings.TrimSpace(code)), account.ID)
	if err != nil {
		b.logger.Error("redeem key", slog.Int64("user_id", account.ID), slog.Any("error", err))
		b.reply(ctx, chatID, msgInternalError)
		return
	}
	if !ok {
		b.reply(ctx, chatID, msgKeyInvalid)
		return
	}
	refreshed, err := b.store.GetAccount(ctx, account.ID)
	if err != nil {
		b.logger.Error("reload account", slog.Int64("user_id", account.ID), slog.Any("error", err))
		b.reply(ctx, chatID, msgKeyRedeemed(b.store.KeyReward(), -1))
		return
	}
	b.reply(ctx, chatID, msgKeyRedeemed(b.store.KeyReward(), refreshed.Balance))
}

func (b *Bot) generateKeys(ctx context.Context, account *ledger.Account, chatID int64, args []string) {
	if !account.IsAdmin() {
		b.reply(ctx, chatID, msgAdminOnly)
		return
	}
	count := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 || parsed > 50 {
			b.reply(ctx, chatID, msgKeyCountInvalid)
			return
		}
		count = parsed
	}
	codes, err := b.store.GenerateKeys(ctx, count)
	if err != nil {
		b.logger.Error("generate keys", slog.Any("error", err))
		b.reply(ctx, chatID, msgInternalError)
		return
	}
	b.reply(ctx, chatID, msgKeysGenerated(codes))
}

func (b *Bot) replyTaskList(ctx context.Context, account *ledger.Account, chatID int64) {
	positions, total := b.queue.Positions(account.ID)
	b.reply(ctx, chatID, msgTaskList(positions, total, b.etaSeconds()))
}

// checkBalance enforces the up-front affordability gate. Admin accounts are
// exempt; everyone else needs the template's full run cost before a sequence
// number is ever allocated.
func (b *Bot) checkBalance(ctx context.Context, account *ledger.Account, chatID int64, tpl *workflows.Template) bool {
	if account.IsAdmin() {
		return true
	}
	current, err := b.store.GetAccount(ctx, account.ID)
	if err != nil {
		b.logger.Error("check balance", slog.Int64("user_id", account.ID), slog.Any("error", err))
		b.reply(ctx, chatID, msgInternalError)
		return false
	}
	if current.Balance < tpl.TotalCost() {
		b.reply(ctx, chatID, msgInsufficientBalance(tpl.TotalCost(), current.Balance))
		return false
	}
	return true
}

func (b *Bot) etaSeconds() int {
	seconds := b.cfg.Workers.SecondsPerTask
	if seconds <= 0 {
		seconds = 30
	}
	return seconds
}
