package bot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"darkroom/internal/ledger"
	"darkroom/internal/services"
	"darkroom/internal/services/comfy"
	"darkroom/internal/taskqueue"
	"darkroom/internal/workflows"
)

// outputPrefixAuto is the output subdirectory for image-to-image runs;
// outputPrefixText for generated images. The workflow graphs write files
// under these prefixes and LocateOutput finds them by basename.
const (
	outputPrefixAuto = "AutoOutput/"
	outputPrefixText = "TextToImage/"
)

type runParams struct {
	runID     string
	account   *ledger.Account
	chatID    int64
	ticket    *taskqueue.Ticket
	template  *workflows.Template
	imagePath string
	prompt    string
}

// startRun enqueues an image job and hands it to the pool. The sequence
// number is allocated only after the balance gate has passed, so a rejected
// request never shifts queue positions.
func (b *Bot) startRun(ctx context.Context, account *ledger.Account, chatID int64, tpl *workflows.Template, imagePath, prompt string) {
	seq := b.seq.Next()
	ticket := b.queue.Enqueue(account.ID, seq)
	_, ahead, _ := b.queue.Position(seq)
	b.reply(ctx, chatID, msgTaskQueued(seq, ahead, (ahead+1)*b.etaSeconds()))

	params := runParams{
		runID:     uuid.NewString(),
		account:   account,
		chatID:    chatID,
		ticket:    ticket,
		template:  tpl,
		imagePath: imagePath,
		prompt:    prompt,
	}
	if !b.pool.Submit(func(runCtx context.Context) { b.runImageJob(runCtx, params) }) {
		ticket.Release()
		b.reply(ctx, chatID, msgSystemBusy)
	}
}

// startTextToImage enqueues a generation job from classifier output.
func (b *Bot) startTextToImage(ctx context.Context, account *ledger.Account, chatID int64, prompt string) {
	tpl := b.library.TextToImage()
	if tpl == nil {
		b.reply(ctx, chatID, msgNoTextToImage)
		return
	}
	if !b.checkBalance(ctx, account, chatID, tpl) {
		return
	}

	seq := b.seq.Next()
	ticket := b.queue.Enqueue(account.ID, seq)
	_, ahead, _ := b.queue.Position(seq)
	b.reply(ctx, chatID, msgTaskQueued(seq, ahead, (ahead+1)*b.etaSeconds()))

	params := runParams{
		runID:    uuid.NewString(),
		account:  account,
		chatID:   chatID,
		ticket:   ticket,
		template: tpl,
		prompt:   prompt,
	}
	if !b.pool.Submit(func(runCtx context.Context) { b.runTextToImage(runCtx, params) }) {
		ticket.Release()
		b.reply(ctx, chatID, msgSystemBusy)
	}
}

// runImageJob executes every iteration of one queued image task. The ticket
// release is deferred so the queue entry disappears on every exit path, and
// each successful iteration settles its cost before the next starts.
func (b *Bot) runImageJob(ctx context.Context, params runParams) {
	defer params.ticket.Release()
	ctx = services.WithRequestID(services.WithChatID(services.WithTaskSeq(ctx, params.ticket.Seq()), params.chatID), params.runID)

	logger := b.logger.With(
		slog.String("run_id", params.runID),
		slog.Int64("seq", params.ticket.Seq()),
		slog.Int64("chat_id", params.chatID),
		slog.String("template", params.template.Name))
	logger.Info("task started", slog.Int("iterations", params.template.Iterations))

	staged, err := b.comfy.StageInput(params.imagePath)
	if err != nil {
		logger.Error("stage input", slog.Any("error", err))
		b.reply(ctx, params.chatID, msgRunFailed)
		return
	}
	base := strings.TrimSuffix(staged, filepath.Ext(staged))

	completed := 0
	for i := 0; i < params.template.Iterations; i++ {
		namePrefix := base + "_" + workflows.IterationSuffix(i)
		ok, stop := b.runIteration(ctx, logger, params, iterationSpec{
			index:      i,
			inputImage: staged,
			namePrefix: namePrefix,
			outputPath: outputPrefixAuto + namePrefix,
			album:      true,
		})
		if ok {
			completed++
		}
		if stop {
			break
		}
	}

	b.finishRun(ctx, logger, params, completed)
	cleanupDownload(params.imagePath)
}

// runTextToImage executes a generation task. Outputs are named by seed, one
// fresh seed per iteration.
func (b *Bot) runTextToImage(ctx context.Context, params runParams) {
	defer params.ticket.Release()
	ctx = services.WithRequestID(services.WithChatID(services.WithTaskSeq(ctx, params.ticket.Seq()), params.chatID), params.runID)

	logger := b.logger.With(
		slog.String("run_id", params.runID),
		slog.Int64("seq", params.ticket.Seq()),
		slog.Int64("chat_id", params.chatID),
		slog.String("template", params.template.Name))
	logger.Info("generation started", slog.Int("iterations", params.template.Iterations))

	completed := 0
	for i := 0; i < params.template.Iterations; i++ {
		seed := workflows.RandomSeed()
		name := strconv.FormatInt(seed, 10)
		ok, stop := b.runIteration(ctx, logger, params, iterationSpec{
			index:      i,
			seed:       seed,
			namePrefix: name,
			outputPath: outputPrefixText + name,
		})
		if ok {
			completed++
		}
		if stop {
			break
		}
	}

	b.finishRun(ctx, logger, params, completed)
}

type iterationSpec struct {
	index      int
	seed       int64
	inputImage string
	namePrefix string
	outputPath string
	album      bool
}

// runIteration performs one submit/await/deliver/settle cycle. It reports
// whether the iteration succeeded and whether the run must stop.
func (b *Bot) runIteration(ctx context.Context, logger *slog.Logger, params runParams, spec iterationSpec) (ok, stop bool) {
	iteration := spec.index + 1

	instance, err := params.template.Instantiate()
	if err != nil {
		logger.Error("instantiate workflow", slog.Any("error", err))
		b.reply(ctx, params.chatID, msgRunFailed)
		return false, true
	}
	seed := spec.seed
	if seed == 0 {
		seed = workflows.RandomSeed()
	}
	if err := configureInstance(instance, seed, spec.inputImage, spec.outputPath, params.prompt, params.template); err != nil {
		logger.Error("configure workflow", slog.Any("error", err))
		b.reply(ctx, params.chatID, msgRunFailed)
		return false, true
	}

	jobID, err := b.comfy.Submit(ctx, instance.Graph())
	if err != nil {
		logger.Error("submit workflow", slog.Int("iteration", iteration), slog.Any("error", err))
		b.reply(ctx, params.chatID, msgIterationFailed(iteration, "backend unreachable"))
		return false, false
	}
	logger.Info("workflow submitted",
		slog.Int("iteration", iteration),
		slog.String("job_id", jobID),
		slog.Int64("seed", seed))

	outcome := b.comfy.AwaitCompletion(ctx, jobID)
	if outcome != comfy.OutcomeCompleted {
		logger.Warn("workflow did not complete",
			slog.Int("iteration", iteration),
			slog.String("job_id", jobID),
			slog.String("outcome", outcome.String()))
		b.reply(ctx, params.chatID, msgIterationFailed(iteration, outcome.String()))
		return false, false
	}

	resultPath, err := b.comfy.LocateOutput(spec.namePrefix)
	if err != nil {
		logger.Warn("locate output", slog.Int("iteration", iteration), slog.Any("error", err))
		b.reply(ctx, params.chatID, msgIterationFailed(iteration, "output missing"))
		return false, false
	}

	caption := msgResultCaption(params.ticket.Seq(), iteration, params.template)
	if spec.album {
		err = b.messenger.SendAlbum(ctx, params.chatID, params.imagePath, resultPath, caption)
	} else {
		err = b.messenger.SendPhoto(ctx, params.chatID, resultPath, caption)
	}
	if err != nil {
		logger.Warn("deliver result", slog.Int("iteration", iteration), slog.Any("error", err))
	}

	if !params.account.IsAdmin() {
		debited, err := b.store.Debit(ctx, params.account.ID, params.template.Cost)
		if err != nil {
			logger.Error("debit account", slog.Any("error", err))
			b.reply(ctx, params.chatID, msgRunStoppedBilling)
			return true, true
		}
		if !debited {
			b.reply(ctx, params.chatID, msgRunStoppedBalance)
			return true, true
		}
	}
	return true, false
}

func configureInstance(instance *workflows.Instance, seed int64, inputImage, outputPrefix, prompt string, tpl *workflows.Template) error {
	if err := instance.SetSeed(seed); err != nil {
		return err
	}
	if inputImage != "" {
		if err := instance.SetInputImage(inputImage); err != nil {
			return err
		}
	}
	if err := instance.SetOutputPrefix(outputPrefix); err != nil {
		return err
	}
	if prompt != "" && tpl.AcceptsPrompt() {
		if err := instance.SetPrompt(prompt); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) finishRun(ctx context.Context, logger *slog.Logger, params runParams, completed int) {
	balance := int64(-1)
	if refreshed, err := b.store.GetAccount(ctx, params.account.ID); err == nil {
		balance = refreshed.Balance
	}
	logger.Info("task finished",
		slog.Int("completed", completed),
		slog.Int("iterations", params.template.Iterations),
		slog.Int64("balance", balance))
	b.reply(ctx, params.chatID, msgRunSummary(completed, params.template.Iterations, balance, params.account.IsAdmin()))
}

// cleanupDownload removes a downloaded source image once the run is over.
// Only temp_ prefixed files are touched; parked edit images share the same
// naming so they are collected too once consumed.
func cleanupDownload(path string) {
	if path == "" {
		return
	}
	if strings.HasPrefix(filepath.Base(path), "temp_") {
		_ = os.Remove(path)
	}
}
