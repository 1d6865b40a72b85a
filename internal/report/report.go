// Package report holds the human-readable outcome of a run and the
// deterministic summariser used when no language model is configured.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rahul/autopilot/internal/plan"
)

// Report is built from a plan and the scheduler's results.
type Report struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Environments []string `json:"environments"`
	Data         any      `json:"data"`
	Timestamp    string   `json:"timestamp"`
	FilePath     string   `json:"filePath,omitempty"`
}

// Now is the clock used for report timestamps.
var Now = time.Now

// Timestamp formats t the way reports carry it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Summarize assembles a report without a model: one line per step in
// declaration order, with the raw results as data.
func Summarize(p *plan.TaskPlan, results map[string]any) *Report {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed %d of %d steps", len(results), len(p.Steps))
	if envs := environmentNames(p); len(envs) > 0 {
		fmt.Fprintf(&b, " across %s", strings.Join(envs, ", "))
	}
	b.WriteString(".")

	for _, s := range p.Steps {
		res, ok := results[s.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s", s.Label(), brief(res))
	}

	return &Report{
		Title:        p.Title,
		Summary:      b.String(),
		Environments: environmentNames(p),
		Data:         results,
		Timestamp:    Timestamp(Now()),
	}
}

func environmentNames(p *plan.TaskPlan) []string {
	envs := p.Environments
	if len(envs) == 0 {
		envs = p.UsedEnvironments()
	}
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = string(e)
	}
	return out
}

const briefLimit = 120

// brief renders a result compactly for the summary.
func brief(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = "done"
	case string:
		s = t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(data)
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > briefLimit {
		s = s[:briefLimit-3] + "..."
	}
	return s
}

// Text renders the report for chat replies and the terminal.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(r.Title)
	if r.Timestamp != "" {
		b.WriteString(" (" + r.Timestamp + ")")
	}
	b.WriteString("\n\n")
	b.WriteString(r.Summary)
	if len(r.Environments) > 0 {
		b.WriteString("\n\nEnvironments: " + strings.Join(r.Environments, ", "))
	}
	if r.FilePath != "" {
		b.WriteString("\nSaved to: " + r.FilePath)
	}
	return b.String()
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

func slug(title string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if s == "" {
		s = "report"
	}
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	return s
}

// Save writes r as indented JSON into dir and records the path on r.
func Save(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.json", slug(r.Title), Now().UTC().Format("20060102T150405.000"))
	path := filepath.Join(dir, name)
	r.FilePath = path

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		r.FilePath = ""
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.FilePath = ""
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}
