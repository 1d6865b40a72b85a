package environments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/governance"
	"github.com/rahul/autopilot/internal/plan"
)

const maxOutputLength = 20000

var packageName = regexp.MustCompile(`^[A-Za-z0-9._+@/-]+$`)

// CommandError reports a command that ran but exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// LiveShell runs commands with bash. Every command is checked against the
// policy first.
type LiveShell struct {
	Dir            string
	Policy         governance.PolicyEngine
	InstallCommand string
}

func (s *LiveShell) Run(ctx context.Context, command string, log executor.LogFunc) (*CommandResult, error) {
	if err := governance.Enforce(ctx, s.Policy, governance.Request{
		Environment: string(plan.EnvTerminal),
		Action:      "run command",
		Arguments:   command,
	}); err != nil {
		return nil, err
	}
	log("$ " + command)
	return s.exec(ctx, command, log)
}

func (s *LiveShell) exec(ctx context.Context, command string, log executor.LogFunc) (*CommandResult, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = s.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &CommandResult{
		Command: command,
		Stdout:  truncate(strings.TrimSpace(stdout.String())),
		Stderr:  truncate(strings.TrimSpace(stderr.String())),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CommandError{Command: command, ExitCode: exitErr.ExitCode(), Stderr: res.Stderr}
		}
		return nil, fmt.Errorf("failed to run command: %w", err)
	}

	output := res.Stdout
	if output == "" {
		output = "(no output)"
	}
	log("Command output:\n" + output)
	return res, nil
}

func (s *LiveShell) Install(ctx context.Context, pkg string, log executor.LogFunc) (*InstallResult, error) {
	if err := governance.Enforce(ctx, s.Policy, governance.Request{
		Environment: string(plan.EnvTerminal),
		Action:      "install package",
		Arguments:   pkg,
	}); err != nil {
		return nil, err
	}
	if s.InstallCommand == "" {
		return nil, errors.New("no install command configured")
	}
	if !packageName.MatchString(pkg) {
		return nil, &executor.InputError{Key: "package", Want: "a plain package name", Got: pkg}
	}

	log("Installing package: " + pkg)
	if _, err := s.exec(ctx, fmt.Sprintf(s.InstallCommand, pkg), log); err != nil {
		return nil, err
	}
	log("Successfully installed " + pkg)
	return &InstallResult{Package: pkg, Status: "installed", Version: "latest"}, nil
}

// truncate caps s at maxOutputLength bytes on a rune boundary.
func truncate(s string) string {
	if len(s) <= maxOutputLength {
		return s
	}
	cut := maxOutputLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
