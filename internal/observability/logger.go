package observability

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EventType defines the category of a structured event.
type EventType string

const (
	EventTypePlan      EventType = "plan"
	EventTypeStep      EventType = "step"
	EventTypeRun       EventType = "run"
	EventTypeReport    EventType = "report"
	EventTypeSink      EventType = "sink"
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeLLM       EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Options configures NewLogger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output io.Writer
	// LLMLogPath receives full prompt/response transcripts. Empty disables it.
	LLMLogPath string
}

// Logger handles structured logging. It is safe for concurrent use.
type Logger struct {
	slog       *slog.Logger
	llmLogPath string
	maxSize    int64
	mu         sync.Mutex
}

func NewLogger(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	return &Logger{
		slog:       slog.New(handler),
		llmLogPath: opts.LLMLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLogger(Options{Output: io.Discard, Level: "error"})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying slog logger.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	attrs := []any{slog.String("type", string(evt.Type))}
	if evt.RunID != "" {
		attrs = append(attrs, slog.String("run_id", evt.RunID))
	}
	if evt.StepID != "" {
		attrs = append(attrs, slog.String("step_id", evt.StepID))
	}
	attrs = append(attrs, slog.Any("data", evt.Data))
	l.slog.Info("event", attrs...)

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		data, err := json.Marshal(evt)
		if err != nil {
			l.slog.Error("failed to marshal llm event", "error", err)
			return
		}
		l.writeToFile(data)
	}
}

// Emit implements Sink, so the logger can receive the scheduler's message
// stream directly.
func (l *Logger) Emit(message, category string) {
	level := slog.LevelInfo
	if category == CategoryError {
		level = slog.LevelError
	}
	l.slog.Log(context.Background(), level, message, "type", string(EventTypeSink), "category", category)
}

func (l *Logger) writeToFile(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(runID, title string, steps int, environments []string) {
	l.Log(Event{
		Type:  EventTypePlan,
		RunID: runID,
		Data: map[string]any{
			"title":        title,
			"steps":        steps,
			"environments": environments,
		},
	})
}

func (l *Logger) LogStep(runID, stepID, environment, action, status string) {
	l.Log(Event{
		Type:   EventTypeStep,
		RunID:  runID,
		StepID: stepID,
		Data: map[string]string{
			"environment": environment,
			"action":      action,
			"status":      status,
		},
	})
}

func (l *Logger) LogRun(runID, status string, duration time.Duration, err error) {
	data := map[string]any{
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: EventTypeRun, RunID: runID, Data: data})
}

func (l *Logger) LogReport(runID, title, path string) {
	l.Log(Event{
		Type:  EventTypeReport,
		RunID: runID,
		Data: map[string]string{
			"title": title,
			"path":  path,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(runID, purpose string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:  EventTypeLLM,
		RunID: runID,
		Data: map[string]any{
			"purpose":    purpose,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
