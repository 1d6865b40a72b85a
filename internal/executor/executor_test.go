package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/autopilot/internal/plan"
)

func echoModule(env plan.Environment) *Module {
	table := NewActionTable().
		Register("Run Command", func(ctx context.Context, in Inputs, log LogFunc) (any, error) {
			cmd, err := in.RequireString("command")
			if err != nil {
				return nil, err
			}
			log("ran " + cmd)
			return cmd, nil
		}).
		Register("noop", func(ctx context.Context, in Inputs, log LogFunc) (any, error) {
			return nil, nil
		})
	m := NewModule(env, table)
	m.Banner = "Terminal"
	return m
}

func TestModuleCaseInsensitiveLookup(t *testing.T) {
	m := echoModule(plan.EnvTerminal)
	var logs []string
	log := func(msg string) { logs = append(logs, msg) }

	for _, action := range []string{"run command", "RUN COMMAND", "  Run   command "} {
		got, err := m.Execute(context.Background(), action, map[string]any{"command": "ls"}, log)
		require.NoError(t, err, action)
		assert.Equal(t, "ls", got)
	}
	assert.Equal(t, "Terminal: run command", logs[0])
	assert.Equal(t, "ran ls", logs[1])
	assert.Equal(t, []string{"run command", "noop"}, m.Actions())
}

func TestModuleUnknownAction(t *testing.T) {
	m := echoModule(plan.EnvTerminal)
	called := false
	_, err := m.Execute(context.Background(), "frobnicate", nil, func(string) { called = true })

	var uae *UnknownActionError
	require.True(t, errors.As(err, &uae))
	assert.Equal(t, "frobnicate", uae.Action)
	assert.Equal(t, plan.EnvTerminal, uae.Environment)
	assert.Contains(t, err.Error(), "frobnicate")
	assert.False(t, called, "nothing should run for an unknown action")
}

func TestInputs(t *testing.T) {
	in := Inputs{
		"url":     "https://example.com",
		"empty":   "",
		"count":   float64(3),
		"ratio":   1.5,
		"points":  []any{"headlines", "prices"},
		"single":  "reviews",
		"bad":     []any{"ok", 4},
		"number":  42,
		"nothing": nil,
	}

	s, err := in.RequireString("url")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", s)

	_, err = in.RequireString("missing")
	var ie *InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "missing", ie.Key)

	_, err = in.RequireString("number")
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "got int")

	_, err = in.RequireString("nothing")
	assert.Error(t, err)

	def, err := in.String("empty", "google")
	require.NoError(t, err)
	assert.Equal(t, "google", def)

	n, err := in.Int("count", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = in.Int("ratio", 0)
	assert.Error(t, err)
	n, err = in.Int("absent", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	list, err := in.StringSlice("points")
	require.NoError(t, err)
	assert.Equal(t, []string{"headlines", "prices"}, list)
	list, err = in.StringSlice("single")
	require.NoError(t, err)
	assert.Equal(t, []string{"reviews"}, list)
	_, err = in.StringSlice("bad")
	assert.ErrorContains(t, err, "bad[1]")
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(echoModule(plan.EnvTerminal))
	require.NoError(t, err)

	got, err := r.Dispatch(context.Background(), plan.EnvTerminal, "run command", map[string]any{"command": "pwd"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pwd", got)

	_, err = r.Dispatch(context.Background(), plan.EnvBrowser, "navigate", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownEnvironment)

	assert.Equal(t, []plan.Environment{plan.EnvTerminal}, r.Environments())
	assert.Equal(t, []string{"noop", "run command"}, r.Describe()[plan.EnvTerminal])

	_, err = NewRegistry(echoModule(plan.EnvTerminal), echoModule(plan.EnvTerminal))
	assert.Error(t, err)
}
