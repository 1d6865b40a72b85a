// Package scheduler runs a task plan: it dispatches each step once all of its
// dependencies have completed, one step at a time, and aborts the whole run
// on the first failure.
//
// Readiness is tracked with per-step counters of unsatisfied dependencies.
// Completing a step decrements the counter of each dependent, and a dependent
// whose counter reaches zero joins the back of the FIFO ready queue. Ties are
// broken by declaration order. When the queue drains with steps still
// waiting, the run is reported incomplete; this is the only cycle and
// dangling-reference detection the scheduler performs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/plan"
)

// Results maps step id to the value its executor returned.
type Results map[string]any

func (r Results) clone() Results {
	out := make(Results, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dispatcher routes a step to its environment executor. *executor.Registry
// implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, env plan.Environment, action string, inputs map[string]any, log executor.LogFunc) (any, error)
}

// Observer is notified around every dispatch.
type Observer interface {
	StepStarted(step plan.Step)
	StepFinished(step plan.Step, err error)
}

type Option func(*Scheduler)

// WithObserver registers an observer for step start and finish events.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

type Scheduler struct {
	dispatcher Dispatcher
	observer   Observer
}

func New(d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{dispatcher: d}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type node struct {
	step       plan.Step
	remaining  int
	dependents []*node
}

// state is the per-run execution state. It is owned by a single Run call.
type state struct {
	nodes     []*node
	ready     []*node
	completed map[string]bool
	results   Results
}

func newState(p *plan.TaskPlan) *state {
	st := &state{
		nodes:     make([]*node, len(p.Steps)),
		completed: make(map[string]bool, len(p.Steps)),
		results:   make(Results, len(p.Steps)),
	}
	byID := make(map[string]*node, len(p.Steps))
	for i, step := range p.Steps {
		n := &node{step: step}
		st.nodes[i] = n
		byID[step.ID] = n
	}
	// Dependents are linked in declaration order so that steps unblocked by
	// the same completion are queued in the order they were declared.
	for _, n := range st.nodes {
		deps := n.step.Dependencies()
		n.remaining = len(deps)
		for _, dep := range deps {
			if d, ok := byID[dep]; ok {
				d.dependents = append(d.dependents, n)
			}
		}
		if n.remaining == 0 {
			st.ready = append(st.ready, n)
		}
	}
	return st
}

func (st *state) complete(n *node, result any) {
	st.results[n.step.ID] = result
	st.completed[n.step.ID] = true
	for _, d := range n.dependents {
		d.remaining--
		if d.remaining == 0 {
			st.ready = append(st.ready, d)
		}
	}
}

func (st *state) blocked() []plan.BlockedStep {
	var out []plan.BlockedStep
	for _, n := range st.nodes {
		if n.remaining == 0 {
			continue
		}
		b := plan.BlockedStep{ID: n.step.ID, Description: n.step.Description}
		for _, dep := range n.step.Dependencies() {
			if st.completed[dep] {
				continue
			}
			if st.declares(dep) {
				b.Waiting = append(b.Waiting, dep)
			} else {
				b.Missing = append(b.Missing, dep)
			}
		}
		out = append(out, b)
	}
	return out
}

func (st *state) declares(id string) bool {
	for _, n := range st.nodes {
		if n.step.ID == id {
			return true
		}
	}
	return false
}

// Run executes the plan and returns every step's result; a plan without steps
// yields an empty map. It fails with a *plan.ValidationError before
// dispatching anything, a *StepExecutionError when a dispatch fails, or an
// *IncompleteExecutionError when steps remain that can never become ready.
func (s *Scheduler) Run(ctx context.Context, p *plan.TaskPlan, sink observability.Sink) (Results, error) {
	if p == nil {
		return nil, errors.New("scheduler: nil plan")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = observability.Discarding
	}
	logger := observability.FromContext(ctx).With("plan", p.Title)

	st := newState(p)
	sink.Emit(fmt.Sprintf("Starting execution of %d steps", len(st.nodes)), observability.CategorySystem)
	logger.Debug("Run started.", "steps", len(st.nodes), "ready", len(st.ready))

	for len(st.ready) > 0 {
		n := st.ready[0]
		st.ready = st.ready[1:]

		result, err := s.dispatch(ctx, n.step, sink, logger)
		if err != nil {
			sink.Emit(fmt.Sprintf("Error in step %q: %v", n.step.Label(), err), observability.CategoryError)
			logger.Error("Step failed, aborting run.", "step", n.step.ID, "error", err)
			return nil, &StepExecutionError{
				StepID:      n.step.ID,
				Description: n.step.Description,
				Environment: n.step.Environment,
				Action:      n.step.Action,
				Err:         err,
				Completed:   st.results.clone(),
			}
		}
		st.complete(n, result)
	}

	if stuck := st.blocked(); len(stuck) > 0 {
		ierr := &IncompleteExecutionError{Steps: stuck, Completed: st.results.clone()}
		sink.Emit("Some steps could not be completed: "+strings.Join(ierr.Labels(), ", "), observability.CategoryError)
		logger.Error("Run incomplete.", "stuck", ierr.IDs())
		return nil, ierr
	}

	sink.Emit(fmt.Sprintf("All %d steps completed", len(st.results)), observability.CategorySystem)
	logger.Debug("Run finished.", "steps", len(st.results))
	return st.results, nil
}

func (s *Scheduler) dispatch(ctx context.Context, step plan.Step, sink observability.Sink, logger *slog.Logger) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	category := string(step.Environment)
	sink.Emit("Executing step: "+step.Label(), category)
	logger.Debug("Dispatching step.", "step", step.ID, "environment", category, "action", step.Action)
	if s.observer != nil {
		s.observer.StepStarted(step)
	}

	log := func(msg string) { sink.Emit(msg, category) }
	result, err := s.dispatcher.Dispatch(ctx, step.Environment, step.Action, step.Inputs, log)

	if s.observer != nil {
		s.observer.StepFinished(step, err)
	}
	if err != nil {
		return nil, err
	}
	sink.Emit("Completed step: "+step.Label(), category)
	return result, nil
}
