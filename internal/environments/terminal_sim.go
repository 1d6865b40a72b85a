package environments

import (
	"context"
	"strings"
	"time"

	"github.com/rahul/autopilot/internal/executor"
)

// SimulatedShell answers common commands with canned output.
type SimulatedShell struct {
	Latency time.Duration
}

func (s *SimulatedShell) Run(ctx context.Context, command string, log executor.LogFunc) (*CommandResult, error) {
	log("$ " + command)
	if err := pause(ctx, s.Latency); err != nil {
		return nil, err
	}

	var stdout string
	switch {
	case strings.HasPrefix(command, "ls"), strings.HasPrefix(command, "dir"):
		stdout = "file1.txt\nfile2.json\ndirectory1\ndirectory2"
	case strings.HasPrefix(command, "echo"):
		stdout = strings.TrimPrefix(strings.TrimPrefix(command, "echo"), " ")
	case strings.HasPrefix(command, "grep"), strings.Contains(command, "find"):
		stdout = "match1.txt:relevant content here\nmatch2.txt:more relevant content"
	default:
		stdout = "Simulated output for command: " + command
	}

	log("Command output:\n" + stdout)
	return &CommandResult{Command: command, Stdout: stdout}, nil
}

func (s *SimulatedShell) Install(ctx context.Context, pkg string, log executor.LogFunc) (*InstallResult, error) {
	log("Installing package: " + pkg)
	if err := pause(ctx, s.Latency); err != nil {
		return nil, err
	}
	log("Successfully installed " + pkg + "@1.0.0")
	return &InstallResult{Package: pkg, Status: "installed", Version: "1.0.0"}, nil
}
