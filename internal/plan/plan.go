// Package plan defines the task plan consumed by the step scheduler: a set of
// steps, each bound to an execution environment, linked by declared
// dependencies.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment is the execution backend a step runs in.
type Environment string

const (
	EnvBrowser    Environment = "browser"
	EnvTerminal   Environment = "terminal"
	EnvFileSystem Environment = "file system"
)

// Environments lists every known environment in canonical order.
var Environments = []Environment{EnvBrowser, EnvTerminal, EnvFileSystem}

// ParseEnvironment normalises an environment tag. Planners are not consistent
// about the file system tag, so the common spellings are accepted.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "browser", "web":
		return EnvBrowser, nil
	case "terminal", "shell":
		return EnvTerminal, nil
	case "file system", "file-system", "filesystem", "file_system", "fs":
		return EnvFileSystem, nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

func (e Environment) String() string { return string(e) }

// Valid reports whether e is one of the canonical tags.
func (e Environment) Valid() bool {
	for _, env := range Environments {
		if e == env {
			return true
		}
	}
	return false
}

func (e *Environment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	env, err := ParseEnvironment(s)
	if err != nil {
		return err
	}
	*e = env
	return nil
}

func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	env, err := ParseEnvironment(s)
	if err != nil {
		return err
	}
	*e = env
	return nil
}

// Step is one unit of work bound to an environment and action.
type Step struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description" yaml:"description"`
	Environment Environment    `json:"environment" yaml:"environment"`
	Action      string         `json:"action" yaml:"action"`
	Inputs      map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	DependsOn   []string       `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// Label returns the description, or the id when the description is empty.
func (s Step) Label() string {
	if s.Description != "" {
		return s.Description
	}
	return s.ID
}

// TaskPlan is the full step graph plus metadata. Step order is declaration
// order, which the scheduler uses as its tie-break.
type TaskPlan struct {
	Title        string        `json:"title" yaml:"title"`
	Description  string        `json:"description" yaml:"description"`
	Environments []Environment `json:"environments" yaml:"environments"`
	Steps        []Step        `json:"steps" yaml:"steps"`
}

// Step returns the step with the given id.
func (p *TaskPlan) Step(id string) (Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// UsedEnvironments returns the distinct environments the steps actually
// reference, in first-use order.
func (p *TaskPlan) UsedEnvironments() []Environment {
	seen := make(map[Environment]bool)
	var out []Environment
	for _, s := range p.Steps {
		if !seen[s.Environment] {
			seen[s.Environment] = true
			out = append(out, s.Environment)
		}
	}
	return out
}

// Normalize fills derived fields: the environment list is rebuilt from the
// steps when the producer left it empty.
func (p *TaskPlan) Normalize() {
	if len(p.Environments) == 0 {
		p.Environments = p.UsedEnvironments()
	}
	for i := range p.Steps {
		p.Steps[i].ID = strings.TrimSpace(p.Steps[i].ID)
		p.Steps[i].Action = strings.TrimSpace(p.Steps[i].Action)
		for j, dep := range p.Steps[i].DependsOn {
			p.Steps[i].DependsOn[j] = strings.TrimSpace(dep)
		}
	}
}

// ValidationError lists every structural problem found in a plan.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid task plan: " + strings.Join(e.Problems, "; ")
}

// Validate checks the structural invariants of the plan. Dependency
// references are not resolved here: dangling ids and cycles are reported by
// the scheduler when the run drains. Actions are not checked either; an
// action the executor lacks fails at dispatch. An empty plan is valid.
func (p *TaskPlan) Validate() error {
	var problems []string

	seen := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		where := fmt.Sprintf("step %d", i+1)
		if s.ID == "" {
			problems = append(problems, where+": missing id")
		} else {
			where = fmt.Sprintf("step %q", s.ID)
			if first, dup := seen[s.ID]; dup {
				problems = append(problems, fmt.Sprintf("%s: duplicate id (first declared as step %d)", where, first+1))
			} else {
				seen[s.ID] = i
			}
		}
		if !s.Environment.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown environment %q", where, s.Environment))
		}
	}

	for _, env := range p.Environments {
		if !env.Valid() {
			problems = append(problems, fmt.Sprintf("plan: unknown environment %q", env))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
