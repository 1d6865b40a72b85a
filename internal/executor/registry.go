package executor

import (
	"context"
	"fmt"

	"github.com/rahul/autopilot/internal/plan"
)

// Registry is the static routing table from environment tag to executor. It
// is not modified after construction and may be shared by concurrent runs.
type Registry struct {
	executors map[plan.Environment]Executor
	order     []plan.Environment
}

// NewRegistry builds a registry. Two executors for the same environment is a
// configuration error.
func NewRegistry(execs ...Executor) (*Registry, error) {
	r := &Registry{executors: make(map[plan.Environment]Executor, len(execs))}
	for _, e := range execs {
		env := e.Environment()
		if _, dup := r.executors[env]; dup {
			return nil, fmt.Errorf("executor for environment %q registered twice", env)
		}
		r.executors[env] = e
		r.order = append(r.order, env)
	}
	return r, nil
}

func (r *Registry) Get(env plan.Environment) (Executor, bool) {
	e, ok := r.executors[env]
	return e, ok
}

// Environments returns the registered environments in registration order.
func (r *Registry) Environments() []plan.Environment {
	out := make([]plan.Environment, len(r.order))
	copy(out, r.order)
	return out
}

// Describe returns each environment's action names.
func (r *Registry) Describe() map[plan.Environment][]string {
	execs := make([]Executor, 0, len(r.order))
	for _, env := range r.order {
		execs = append(execs, r.executors[env])
	}
	return Describe(execs...)
}

// Dispatch routes one action to the executor registered for env.
func (r *Registry) Dispatch(ctx context.Context, env plan.Environment, action string, inputs map[string]any, log LogFunc) (any, error) {
	e, ok := r.executors[env]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
	if inputs == nil {
		inputs = map[string]any{}
	}
	return e.Execute(ctx, action, inputs, log)
}
