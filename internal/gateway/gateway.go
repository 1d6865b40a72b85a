package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rahul/autopilot/internal/agent"
	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/store"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start listens for messages until ctx is done.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// JobManager schedules instructions on behalf of a chat. *store.RunStore
// implements it.
type JobManager interface {
	AddJob(ctx context.Context, platform, chatID, instruction string, interval, delay time.Duration) (int64, error)
	ListJobs(ctx context.Context, platform, chatID string) ([]store.Job, error)
	ClearJobs(ctx context.Context, platform, chatID string) (int64, error)
}

const minInterval = 60

const helpText = `Send me an instruction and I will plan it, run it and report back.

Commands:
/schedule <seconds> <instruction> - run an instruction every N seconds (minimum 60)
/once <seconds> <instruction> - run an instruction once after N seconds
/jobs - list your scheduled tasks
/clear - remove all your scheduled tasks
/status - show what the agent is doing`

// Handler turns a chat message into a reply. It is shared by the chat
// gateways.
type Handler struct {
	Platform string
	Executor agent.TaskExecutor
	// Jobs is optional; scheduling commands are refused without it.
	Jobs   JobManager
	Logger *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// Handle processes one message from chatID.
func (h *Handler) Handle(ctx context.Context, chatID, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if !strings.HasPrefix(text, "/") {
		return h.execute(ctx, text)
	}

	cmd, rest, _ := strings.Cut(text, " ")
	// Telegram appends the bot name in groups: /jobs@my_bot.
	cmd, _, _ = strings.Cut(strings.ToLower(cmd), "@")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/start", "/help":
		return helpText
	case "/status":
		return observability.StatusLine()
	case "/schedule":
		return h.schedule(ctx, chatID, rest, true)
	case "/once":
		return h.schedule(ctx, chatID, rest, false)
	case "/jobs":
		return h.listJobs(ctx, chatID)
	case "/clear":
		return h.clearJobs(ctx, chatID)
	default:
		return "Unknown command. Send /help for the list of commands."
	}
}

func (h *Handler) execute(ctx context.Context, instruction string) string {
	rep, err := h.Executor.ExecuteTask(ctx, instruction, nil)
	if err != nil {
		h.logger().Error("Task failed.", "platform", h.Platform, "error", err)
		return "Task failed: " + err.Error()
	}
	return rep.Text()
}

func (h *Handler) schedule(ctx context.Context, chatID, args string, recurring bool) string {
	if h.Jobs == nil {
		return "Scheduling is not available."
	}
	usage := "Usage: /schedule <seconds> <instruction>"
	if !recurring {
		usage = "Usage: /once <seconds> <instruction>"
	}

	secStr, instruction, _ := strings.Cut(args, " ")
	instruction = strings.TrimSpace(instruction)
	seconds, err := strconv.Atoi(secStr)
	if err != nil || seconds < 0 || instruction == "" {
		return usage
	}

	var interval, delay time.Duration
	if recurring {
		if seconds < minInterval {
			return fmt.Sprintf("Error: Minimum interval is %d seconds.", minInterval)
		}
		interval = time.Duration(seconds) * time.Second
	} else {
		delay = time.Duration(seconds) * time.Second
	}

	id, err := h.Jobs.AddJob(ctx, h.Platform, chatID, instruction, interval, delay)
	if err != nil {
		h.logger().Error("Failed to schedule task.", "platform", h.Platform, "error", err)
		return "Failed to schedule task."
	}
	if recurring {
		return fmt.Sprintf("Scheduled task #%d: '%s' every %d seconds.", id, instruction, seconds)
	}
	return fmt.Sprintf("Scheduled task #%d: '%s' in %d seconds.", id, instruction, seconds)
}

func (h *Handler) listJobs(ctx context.Context, chatID string) string {
	if h.Jobs == nil {
		return "Scheduling is not available."
	}
	jobs, err := h.Jobs.ListJobs(ctx, h.Platform, chatID)
	if err != nil {
		h.logger().Error("Failed to list tasks.", "platform", h.Platform, "error", err)
		return "Failed to list tasks."
	}
	if len(jobs) == 0 {
		return "No scheduled tasks."
	}
	var b strings.Builder
	b.WriteString("Scheduled tasks:")
	for _, j := range jobs {
		when := "once"
		if j.Recurring() {
			when = fmt.Sprintf("every %ds", j.IntervalSeconds)
		}
		fmt.Fprintf(&b, "\n#%d %s (%s, next %s)", j.ID, j.Instruction, when, j.NextRun.Format(time.RFC3339))
	}
	return b.String()
}

func (h *Handler) clearJobs(ctx context.Context, chatID string) string {
	if h.Jobs == nil {
		return "Scheduling is not available."
	}
	n, err := h.Jobs.ClearJobs(ctx, h.Platform, chatID)
	if err != nil {
		h.logger().Error("Failed to clear tasks.", "platform", h.Platform, "error", err)
		return "Failed to clear tasks."
	}
	return fmt.Sprintf("Cleared %d scheduled tasks.", n)
}

// chunk splits text into pieces of at most limit bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func chunk(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(text)
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
