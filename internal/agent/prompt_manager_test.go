package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_Prompt(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"identity.md": "Identity Content",
		"soul.md":     "Soul Content",
		"user.md":     "User Content",
		"extra.md":    "Extra Content",
		"planner.md":  "Planner Content",
	}

	for name, content := range files {
		err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(tempDir)
	prompt, err := pm.Prompt(RolePlanner)
	if err != nil {
		t.Fatal(err)
	}

	order := []string{"Identity Content", "Soul Content", "User Content", "Extra Content", "Planner Content"}
	last := -1
	for _, part := range order {
		idx := strings.Index(prompt, part)
		if idx < 0 {
			t.Fatalf("Prompt missing expected part: %s", part)
		}
		if idx <= last {
			t.Errorf("%s is out of order", part)
		}
		last = idx
	}

	// No reporter.md: the built-in reporter prompt follows the shared files.
	reporter, err := pm.Prompt(RoleReporter)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(reporter, "Planner Content") {
		t.Error("Reporter prompt should not include the planner file")
	}
	if !strings.HasSuffix(reporter, defaultReporterPrompt) {
		t.Error("Reporter prompt should end with the built-in prompt")
	}
}

func TestPromptManager_MissingDirectory(t *testing.T) {
	pm := NewPromptManager(filepath.Join(t.TempDir(), "missing"))
	prompt, err := pm.Prompt(RolePlanner)
	if err != nil {
		t.Fatal(err)
	}
	if prompt != defaultPlannerPrompt {
		t.Error("Expected the built-in planner prompt")
	}

	if _, err := pm.Prompt(Role("critic")); err == nil {
		t.Error("Expected an error for an unknown role")
	}
}
