// Package executor defines the uniform contract every environment executor
// implements and the static registry the scheduler dispatches through.
package executor

import (
	"context"
	"sort"
	"strings"

	"github.com/rahul/autopilot/internal/plan"
)

// LogFunc receives progress messages from an executor. The caller scopes it
// to the environment the executor serves.
type LogFunc func(message string)

// Executor runs named actions for one environment.
type Executor interface {
	Environment() plan.Environment
	// Actions lists the action names the executor implements.
	Actions() []string
	Execute(ctx context.Context, action string, inputs map[string]any, log LogFunc) (any, error)
}

// ActionFunc implements one named action.
type ActionFunc func(ctx context.Context, in Inputs, log LogFunc) (any, error)

// ActionTable maps normalised action names to their implementation. It is
// filled at construction time, so an unsupported action is a lookup miss.
type ActionTable struct {
	names   []string
	actions map[string]ActionFunc
}

func NewActionTable() *ActionTable {
	return &ActionTable{actions: make(map[string]ActionFunc)}
}

func normalizeAction(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Register adds an action. Registering the same name twice replaces the
// previous implementation.
func (t *ActionTable) Register(name string, fn ActionFunc) *ActionTable {
	key := normalizeAction(name)
	if _, exists := t.actions[key]; !exists {
		t.names = append(t.names, key)
	}
	t.actions[key] = fn
	return t
}

// Lookup finds an action by name, ignoring case and surrounding whitespace.
func (t *ActionTable) Lookup(name string) (ActionFunc, bool) {
	fn, ok := t.actions[normalizeAction(name)]
	return fn, ok
}

// Names returns the registered action names in registration order.
func (t *ActionTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Module is an Executor backed by an ActionTable.
type Module struct {
	env   plan.Environment
	table *ActionTable
	// Banner, when set, is logged before every action.
	Banner string
}

func NewModule(env plan.Environment, table *ActionTable) *Module {
	return &Module{env: env, table: table}
}

func (m *Module) Environment() plan.Environment { return m.env }

func (m *Module) Actions() []string { return m.table.Names() }

func (m *Module) Execute(ctx context.Context, action string, inputs map[string]any, log LogFunc) (any, error) {
	if log == nil {
		log = func(string) {}
	}
	fn, ok := m.table.Lookup(action)
	if !ok {
		return nil, &UnknownActionError{Environment: m.env, Action: action, Known: m.table.Names()}
	}
	if m.Banner != "" {
		log(m.Banner + ": " + action)
	}
	return fn(ctx, Inputs(inputs), log)
}

// Describe returns, for each environment, its sorted action names.
func Describe(execs ...Executor) map[plan.Environment][]string {
	out := make(map[plan.Environment][]string, len(execs))
	for _, e := range execs {
		names := e.Actions()
		sort.Strings(names)
		out[e.Environment()] = names
	}
	return out
}
