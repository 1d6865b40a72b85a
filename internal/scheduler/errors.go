package scheduler

import (
	"fmt"
	"strings"

	"github.com/rahul/autopilot/internal/plan"
)

// StepExecutionError reports the step whose dispatch aborted the run. Err is
// the executor's error; Completed holds the results of the steps that ran
// before it and is informational only.
type StepExecutionError struct {
	StepID      string
	Description string
	Environment plan.Environment
	Action      string
	Err         error
	Completed   Results
}

func (e *StepExecutionError) Error() string {
	label := e.Description
	if label == "" {
		label = e.StepID
	}
	return fmt.Sprintf("failed to execute step %q: %v", label, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// IncompleteExecutionError reports that the ready queue drained while steps
// were still waiting on dependencies that can never complete, because of a
// cycle or a reference to an id the plan does not declare.
type IncompleteExecutionError struct {
	Steps     []plan.BlockedStep
	Completed Results
}

func (e *IncompleteExecutionError) Error() string {
	return "task execution incomplete, unfinished steps: " + strings.Join(e.Labels(), ", ")
}

// IDs returns the ids of the stuck steps in declaration order.
func (e *IncompleteExecutionError) IDs() []string {
	out := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		out[i] = s.ID
	}
	return out
}

// Labels returns the stuck steps' descriptions, falling back to their ids.
func (e *IncompleteExecutionError) Labels() []string {
	out := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		out[i] = s.Description
		if out[i] == "" {
			out[i] = s.ID
		}
	}
	return out
}
