package store

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning    RunStatus = "running"
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
	RunIncomplete RunStatus = "incomplete"
)

// Run is one execution of an instruction or a supplied plan.
type Run struct {
	ID          string          `json:"id"`
	Instruction string          `json:"instruction"`
	Title       string          `json:"title"`
	Status      RunStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	Plan        json.RawMessage `json:"plan,omitempty"`
	Report      json.RawMessage `json:"report,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Logs        []LogEntry      `json:"logs,omitempty"`
}

// LogEntry is one sink message recorded during a run.
type LogEntry struct {
	Time     time.Time `json:"time"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
}

// Job is a scheduled instruction. An interval of zero makes it one-shot.
type Job struct {
	ID              int64      `json:"id"`
	Platform        string     `json:"platform"`
	ChatID          string     `json:"chat_id"`
	Instruction     string     `json:"instruction"`
	IntervalSeconds int        `json:"interval_seconds"`
	NextRun         time.Time  `json:"next_run"`
	LastRun         *time.Time `json:"last_run,omitempty"`
}

// Recurring reports whether the job runs more than once.
func (j Job) Recurring() bool { return j.IntervalSeconds > 0 }
