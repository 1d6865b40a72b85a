package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/store"
)

// Notifier delivers a message to a chat. The gateways implement it.
type Notifier interface {
	Send(chatID string, text string) error
}

// JobStore is the part of the run store the job runner needs.
type JobStore interface {
	DuePendingJobs(ctx context.Context) ([]store.Job, error)
	MarkJobRun(ctx context.Context, j store.Job) error
	DeleteJob(ctx context.Context, id int64) error
}

// JobRunner polls for due jobs and executes their instructions, notifying
// the chat that scheduled them.
type JobRunner struct {
	Executor  TaskExecutor
	Store     JobStore
	Notifiers map[string]Notifier
	Interval  time.Duration
	Logger    *observability.Logger
}

func NewJobRunner(exec TaskExecutor, jobs JobStore, logger *observability.Logger) *JobRunner {
	if logger == nil {
		logger = observability.Discard()
	}
	return &JobRunner{
		Executor:  exec,
		Store:     jobs,
		Notifiers: map[string]Notifier{},
		Interval:  30 * time.Second,
		Logger:    logger,
	}
}

// Register routes notifications for platform to n.
func (r *JobRunner) Register(platform string, n Notifier) {
	r.Notifiers[platform] = n
}

func (r *JobRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.Logger.Slog().Info("Job runner started.", "interval", r.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunDue(ctx)
		}
	}
}

// RunDue executes every due job once and returns how many ran.
func (r *JobRunner) RunDue(ctx context.Context) int {
	lg := r.Logger.Slog()
	jobs, err := r.Store.DuePendingJobs(ctx)
	if err != nil {
		lg.Error("Failed to poll jobs.", "error", err)
		return 0
	}

	ran := 0
	for _, j := range jobs {
		if ctx.Err() != nil {
			return ran
		}
		lg.Info("Executing scheduled job.", "job_id", j.ID, "platform", j.Platform, "chat_id", j.ChatID)

		// Marked before executing: a failed job waits for its next interval.
		if j.Recurring() {
			if err := r.Store.MarkJobRun(ctx, j); err != nil {
				lg.Error("Failed to update job.", "job_id", j.ID, "error", err)
			}
		} else if err := r.Store.DeleteJob(ctx, j.ID); err != nil {
			lg.Error("Failed to delete one-shot job.", "job_id", j.ID, "error", err)
		}

		rep, err := r.Executor.ExecuteTask(ctx, j.Instruction, nil)
		ran++

		var text string
		if err != nil {
			lg.Error("Scheduled job failed.", "job_id", j.ID, "error", err)
			text = fmt.Sprintf("Scheduled task failed: %s\n\n%v", j.Instruction, err)
		} else {
			text = "Scheduled Task Output\n\n" + rep.Text()
		}

		n, ok := r.Notifiers[j.Platform]
		if !ok {
			continue
		}
		if err := n.Send(j.ChatID, text); err != nil {
			lg.Error("Failed to notify chat.", "job_id", j.ID, "error", err)
		}
	}
	return ran
}
