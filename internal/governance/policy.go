package governance

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes an action a live backend is about to perform.
type Request struct {
	Environment string
	Action      string
	Arguments   string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates actions against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedActions map[string]bool
	DeniedRegex   []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedActions: make(map[string]bool),
		DeniedRegex:   make([]*regexp.Regexp, 0),
	}
}

func actionKey(env, action string) string {
	return strings.ToLower(env) + "/" + strings.ToLower(strings.TrimSpace(action))
}

// DenyAction blocks an action of an environment outright.
func (e *DefaultPolicyEngine) DenyAction(env, action string) {
	e.DeniedActions[actionKey(env, action)] = true
}

func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedActions[actionKey(req.Environment, req.Action)] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Action '%s' in %s is restricted by system policy", req.Action, req.Environment),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Arguments) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Arguments match restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// DeniedError is returned by backends when the policy refuses an action.
type DeniedError struct {
	Request Request
	Reason  string
}

func (e *DeniedError) Error() string {
	return "denied by policy: " + e.Reason
}

// Enforce evaluates req and converts a deny into a *DeniedError. A nil engine
// allows everything.
func Enforce(ctx context.Context, engine PolicyEngine, req Request) error {
	if engine == nil {
		return nil
	}
	res, err := engine.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if res.Effect == EffectDeny {
		return &DeniedError{Request: req, Reason: res.Reason}
	}
	return nil
}

// DefaultDenyPatterns are destructive command patterns blocked out of the box.
var DefaultDenyPatterns = []string{`rm\s+-rf`, `mkfs`, `shutdown`, `reboot`}
