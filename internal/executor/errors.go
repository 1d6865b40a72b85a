package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/autopilot/internal/plan"
)

// ErrUnknownEnvironment is returned when no executor is registered for a tag.
var ErrUnknownEnvironment = errors.New("unknown environment")

// UnknownActionError reports an action name an executor does not implement.
type UnknownActionError struct {
	Environment plan.Environment
	Action      string
	Known       []string
}

func (e *UnknownActionError) Error() string {
	msg := fmt.Sprintf("unknown %s action: %s", e.Environment, e.Action)
	if len(e.Known) > 0 {
		msg += " (supported: " + strings.Join(e.Known, ", ") + ")"
	}
	return msg
}

// InputError reports a missing or mistyped action input.
type InputError struct {
	Key  string
	Want string
	Got  any
}

func (e *InputError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("input %q is required (%s)", e.Key, e.Want)
	}
	return fmt.Sprintf("input %q must be %s, got %T", e.Key, e.Want, e.Got)
}
