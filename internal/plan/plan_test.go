package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(id string, deps ...string) Step {
	return Step{ID: id, Description: "step " + id, Environment: EnvTerminal, Action: "run command", DependsOn: deps}
}

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"browser", EnvBrowser},
		{"Terminal", EnvTerminal},
		{"file system", EnvFileSystem},
		{"file-system", EnvFileSystem},
		{"FileSystem", EnvFileSystem},
		{" fs ", EnvFileSystem},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEnvironment(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseEnvironment("database")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("valid plan with dangling dependency", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{step("a"), step("b", "ghost")}}
		assert.NoError(t, p.Validate())
	})

	t.Run("empty plan", func(t *testing.T) {
		assert.NoError(t, (&TaskPlan{Title: "nothing to do"}).Validate())
	})

	t.Run("empty action is left to the executor", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{{ID: "a", Environment: EnvTerminal}}}
		assert.NoError(t, p.Validate())
	})

	t.Run("duplicate ids and missing fields", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{
			step("a"),
			step("a"),
			{ID: "c", Environment: "kitchen"},
			{Environment: EnvBrowser, Action: "navigate"},
		}}
		var verr *ValidationError
		require.True(t, errors.As(p.Validate(), &verr))
		assert.Len(t, verr.Problems, 3)
		assert.Contains(t, verr.Error(), `step "a": duplicate id`)
		assert.Contains(t, verr.Error(), `step "c": unknown environment "kitchen"`)
		assert.Contains(t, verr.Error(), "step 4: missing id")
	})
}

func TestDependenciesDeduplicates(t *testing.T) {
	s := step("c", "a", "b", "a")
	assert.Equal(t, []string{"a", "b"}, s.Dependencies())
	assert.Nil(t, step("x").Dependencies())
}

func TestCheck(t *testing.T) {
	t.Run("chain", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{step("c", "b"), step("a"), step("b", "a")}}
		a := p.Check()
		assert.True(t, a.Complete())
		assert.Equal(t, []string{"a", "b", "c"}, a.Order)
	})

	t.Run("declaration order tie-break", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{step("x"), step("y", "x"), step("z"), step("w", "x")}}
		assert.Equal(t, []string{"x", "z", "y", "w"}, p.Check().Order)
	})

	t.Run("cycle and its dependents are blocked", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{
			step("a", "b"),
			step("b", "a"),
			step("c", "b"),
			step("d"),
		}}
		a := p.Check()
		assert.Equal(t, []string{"d"}, a.Order)
		require.Len(t, a.Blocked, 3)
		assert.Equal(t, "a", a.Blocked[0].ID)
		assert.Equal(t, []string{"b"}, a.Blocked[0].Waiting)
		assert.Equal(t, "c", a.Blocked[2].ID)
	})

	t.Run("dangling reference", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{step("a"), step("b", "a", "ghost")}}
		a := p.Check()
		require.Len(t, a.Blocked, 1)
		assert.Equal(t, "b", a.Blocked[0].ID)
		assert.Equal(t, []string{"ghost"}, a.Blocked[0].Missing)
		assert.Empty(t, a.Blocked[0].Waiting)
	})

	t.Run("self dependency", func(t *testing.T) {
		p := &TaskPlan{Steps: []Step{step("a", "a")}}
		a := p.Check()
		require.Len(t, a.Blocked, 1)
		assert.Equal(t, []string{"a"}, a.Blocked[0].Waiting)
	})
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"title": "News digest",
		"description": "Collect headlines",
		"steps": [
			{"id": "s1", "description": "open site", "environment": "browser", "action": "navigate", "inputs": {"url": "https://news.example"}},
			{"id": "s2", "description": "save", "environment": "file-system", "action": "write file", "dependsOn": ["s1"]}
		]
	}`)
	p, err := Parse(data, FormatJSON)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, EnvFileSystem, p.Steps[1].Environment)
	assert.Equal(t, []Environment{EnvBrowser, EnvFileSystem}, p.Environments)
	assert.Equal(t, "https://news.example", p.Steps[0].Inputs["url"])

	_, err = Parse([]byte(`{"steps":[{"id":"x","environment":"moon"}]}`), FormatJSON)
	assert.Error(t, err)
}

func TestParseTrimsIDsAndDependencies(t *testing.T) {
	p, err := Parse([]byte(`{"steps":[
		{"id":" A ","environment":"terminal","action":" run command "},
		{"id":"B","environment":"terminal","action":"run command","dependsOn":[" A ","\tA"]}
	]}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "A", p.Steps[0].ID)
	assert.Equal(t, "run command", p.Steps[0].Action)
	assert.Equal(t, []string{"A", "A"}, p.Steps[1].DependsOn)
	assert.Equal(t, []string{"A"}, p.Steps[1].Dependencies())

	a := p.Check()
	assert.True(t, a.Complete())
	assert.Equal(t, []string{"A", "B"}, a.Order)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	doc := `title: Disk report
description: Inspect the workspace
environments: [terminal, file system]
steps:
  - id: list
    description: List files
    environment: terminal
    action: run command
    inputs:
      command: ls -la
  - id: save
    description: Save listing
    environment: file system
    action: write file
    inputs:
      path: out.txt
    dependsOn: [list]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Disk report", p.Title)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, []string{"list"}, p.Steps[1].DependsOn)
	assert.Equal(t, "ls -la", p.Steps[0].Inputs["command"])
}
