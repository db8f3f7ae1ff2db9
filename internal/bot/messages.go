package bot

import (
	"fmt"
	"strings"

	"darkroom/internal/ledger"
	"darkroom/internal/taskqueue"
	"darkroom/internal/workflows"
)

const (
	msgUnauthorized       = "You are not authorized to use this bot."
	msgInternalError      = "Something went wrong on our side. Please try again later."
	msgDownloadFailed     = "Could not fetch that photo. Please send it again."
	msgSystemBusy         = "The system is at capacity right now. Please try again in a few minutes."
	msgRunFailed          = "The task could not be started. Please try again later."
	msgAwaitingKey        = "Please send your redemption key."
	msgKeyInvalid         = "That key is invalid or has already been used."
	msgAwaitingEditPrompt = "Got the image. Now tell me what to change."
	msgEditImageReplaced  = "Replacing the previous image you sent."
	msgEditCanceled       = "The pending edit was canceled."
	msgAdminOnly          = "Only administrators can do that."
	msgKeyCountInvalid    = "Key count must be a number between 1 and 50."
	msgUnknownCommand     = "Unknown command. Send /help to see what I can do."
	msgRunStoppedBalance  = "Balance exhausted; the remaining iterations were skipped."
	msgRunStoppedBilling  = "A billing error occurred; the remaining iterations were skipped."
	msgNoTextToImage      = "Image generation is not available right now."
	msgFallback           = "Send me a photo to process it, or /help for the command list."
)

func msgWelcome(balance int64) string {
	return fmt.Sprintf("Welcome! Your account has been created with %d credits.\nSend a photo to get started, or /help for the command list.", balance)
}

func msgHelp(library *workflows.Library) string {
	var b strings.Builder
	b.WriteString("Send a photo and I will process it with the active workflow.\n\n")
	b.WriteString("Commands:\n")
	b.WriteString("/info - account overview\n")
	b.WriteString("/points - credit balance\n")
	b.WriteString("/task - your queued tasks\n")
	b.WriteString("/key - redeem a key for credits\n")
	for _, tpl := range library.Switchable() {
		fmt.Fprintf(&b, "%s - switch to %s (%d credits per image)\n", tpl.Command, tpl.DisplayName, tpl.TotalCost())
	}
	return strings.TrimRight(b.String(), "\n")
}

func roleLabel(role ledger.Role) string {
	switch role {
	case ledger.RoleAdmin:
		return "Administrator"
	case ledger.RoleMember:
		return "Member"
	default:
		return "Standard user"
	}
}

func msgAccountInfo(account *ledger.Account, active *workflows.Template) string {
	name := account.Username
	if name == "" {
		name = fmt.Sprintf("user %d", account.ID)
	}
	return fmt.Sprintf("Account: %s\nRole: %s\nBalance: %d credits\nActive workflow: %s",
		name, roleLabel(account.Role), account.Balance, active.DisplayName)
}

func msgBalance(balance int64) string {
	return fmt.Sprintf("You have %d credits.", balance)
}

func msgInsufficientBalance(required, balance int64) string {
	return fmt.Sprintf("This task costs %d credits but you have %d.\nUse /key to redeem a key for more.", required, balance)
}

func msgTaskQueued(seq int64, ahead, etaSeconds int) string {
	if ahead == 0 {
		return fmt.Sprintf("Task #%d accepted and starting now. Estimated wait: %s.", seq, formatETA(etaSeconds))
	}
	return fmt.Sprintf("Task #%d accepted. %d task(s) ahead of you; estimated wait: %s.", seq, ahead, formatETA(etaSeconds))
}

func msgTaskList(positions []taskqueue.TaskPosition, total, etaPerTask int) string {
	if len(positions) == 0 {
		return "You have no queued tasks."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d queued task(s); %d in the queue overall.\n", len(positions), total)
	for _, p := range positions {
		fmt.Fprintf(&b, "Task #%d - position %d, about %s remaining\n", p.Seq, p.Position, formatETA(p.Position*etaPerTask))
	}
	return strings.TrimRight(b.String(), "\n")
}

func msgTemplateSwitched(tpl *workflows.Template) string {
	return fmt.Sprintf("Switched to %s. Each image costs %d credits.", tpl.DisplayName, tpl.TotalCost())
}

func msgUnknownTemplate(name string) string {
	return fmt.Sprintf("I don't know a workflow called %q. Send /help for the available ones.", name)
}

func msgKeyRedeemed(reward, balance int64) string {
	if balance < 0 {
		return fmt.Sprintf("Key accepted! %d credits added.", reward)
	}
	return fmt.Sprintf("Key accepted! %d credits added; you now have %d.", reward, balance)
}

func msgKeysGenerated(codes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generated %d key(s):\n", len(codes))
	for _, code := range codes {
		b.WriteString(code)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func msgIterationFailed(iteration int, reason string) string {
	return fmt.Sprintf("Image %d failed (%s).", iteration, reason)
}

func msgResultCaption(seq int64, iteration int, tpl *workflows.Template) string {
	if tpl.Iterations > 1 {
		return fmt.Sprintf("Task #%d - %s (%d/%d)", seq, tpl.DisplayName, iteration, tpl.Iterations)
	}
	return fmt.Sprintf("Task #%d - %s", seq, tpl.DisplayName)
}

func msgRunSummary(completed, planned int, balance int64, admin bool) string {
	var b strings.Builder
	if completed == planned {
		fmt.Fprintf(&b, "Task finished: %d image(s) delivered.", completed)
	} else {
		fmt.Fprintf(&b, "Task finished: %d of %d image(s) delivered.", completed, planned)
	}
	if !admin && balance >= 0 {
		fmt.Fprintf(&b, " Remaining balance: %d credits.", balance)
	}
	return b.String()
}

func formatETA(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := seconds / 60
	rest := seconds % 60
	if rest == 0 {
		return fmt.Sprintf("%d minute(s)", minutes)
	}
	return fmt.Sprintf("%d minute(s) %d seconds", minutes, rest)
}
