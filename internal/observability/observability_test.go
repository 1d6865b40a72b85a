package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderKeepsEmissionOrder(t *testing.T) {
	r := NewRecorder()
	r.Emit("one", CategorySystem)
	r.Emit("two", "browser")
	r.Emit("three", CategoryError)

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"one", "two", "three"}, r.Messages())
	assert.Equal(t, "browser", entries[1].Category)
	assert.False(t, entries[2].Time.Before(entries[0].Time))

	// Entries returns a copy.
	entries[0].Message = "changed"
	assert.Equal(t, "one", r.Entries()[0].Message)
}

func TestTee(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	sink := Tee(a, nil, b)
	sink.Emit("hello", CategorySystem)

	assert.Equal(t, []string{"hello"}, a.Messages())
	assert.Equal(t, []string{"hello"}, b.Messages())
}

func TestLoggerEmitWritesCategory(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Options{Output: &buf, Level: "debug"})
	l.Emit("Executing step: fetch", "browser")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Executing step: fetch", rec["msg"])
	assert.Equal(t, "browser", rec["category"])
	assert.Equal(t, "INFO", rec["level"])
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Options{Output: &buf, Level: "error", Format: "text"})
	l.Emit("ignored", CategorySystem)
	assert.Empty(t, buf.String())

	l.Emit("boom", CategoryError)
	assert.True(t, strings.Contains(buf.String(), "boom"))
}

func TestLogLLMAppendsTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm.jsonl")
	var buf bytes.Buffer
	l := NewLogger(Options{Output: &buf, LLMLogPath: path})

	l.LogLLM("run-1", "plan", "prompt", "response", nil)
	l.LogLLM("run-1", "report", "prompt", "response", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var evt Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &evt))
	assert.Equal(t, EventTypeLLM, evt.Type)
	assert.Equal(t, "run-1", evt.RunID)
}

func TestBeginRunResetsToIdle(t *testing.T) {
	endA := BeginRun()
	endB := BeginRun()
	SetStatus(RoleExecuting, "task")

	endA()
	endA()
	role, _, _ := GetStatus()
	assert.Equal(t, RoleExecuting, role)

	endB()
	s := Snapshot()
	assert.Equal(t, RoleIdle, s.Role)
	assert.Equal(t, 0, s.ActiveRuns)
	assert.Empty(t, s.Task)
}
