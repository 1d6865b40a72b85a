package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Role names a prompt: the planner or the reporter.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleReporter Role = "reporter"
)

const defaultPlannerPrompt = `You are an AI task planner that breaks down natural language instructions into structured plans.
Analyze the user's instruction and create a detailed execution plan that:
1. Identifies which environments (browser, terminal, file system) are needed
2. Breaks the task down into steps with unique ids
3. Specifies dependencies between steps with dependsOn
4. Uses only the actions listed for each environment, with the inputs they need

Always answer by calling the propose_plan tool.`

const defaultReporterPrompt = `You are an AI report generator that creates professional summaries of completed tasks.
Analyze the execution results and create a concise, well-structured report that:
1. Summarizes what was accomplished
2. Highlights key findings or data
3. Presents the information clearly

Always answer by calling the submit_report tool.`

var defaultPrompts = map[Role]string{
	RolePlanner:  defaultPlannerPrompt,
	RoleReporter: defaultReporterPrompt,
}

// PromptManager assembles system prompts from markdown files. Shared files
// (identity.md, soul.md, user.md and any other .md) are prepended to the
// role file; a missing role file falls back to the built-in prompt.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

var sharedOrder = map[string]int{
	"identity.md": 1,
	"soul.md":     2,
	"user.md":     3,
}

func isRoleFile(name string) bool {
	for role := range defaultPrompts {
		if name == string(role)+".md" {
			return true
		}
	}
	return false
}

// sharedFiles returns the shared prompt file names in prompt order.
func (pm *PromptManager) sharedFiles() ([]string, error) {
	entries, err := os.ReadDir(pm.Directory)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") || isRoleFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		oi, okI := sharedOrder[names[i]]
		oj, okJ := sharedOrder[names[j]]
		if okI && okJ {
			return oi < oj
		}
		if okI != okJ {
			return okI
		}
		return names[i] < names[j]
	})
	return names, nil
}

// Prompt returns the system prompt for role.
func (pm *PromptManager) Prompt(role Role) (string, error) {
	def, ok := defaultPrompts[role]
	if !ok {
		return "", fmt.Errorf("unknown prompt role %q", role)
	}
	if pm == nil || pm.Directory == "" {
		return def, nil
	}

	names, err := pm.sharedFiles()
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %w", err)
	}

	var contents []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(pm.Directory, name))
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}

	rolePrompt := def
	data, err := os.ReadFile(filepath.Join(pm.Directory, string(role)+".md"))
	switch {
	case err == nil:
		rolePrompt = strings.TrimSpace(string(data))
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to read %s prompt: %w", role, err)
	}
	contents = append(contents, rolePrompt)

	return strings.Join(contents, "\n\n---\n\n"), nil
}
