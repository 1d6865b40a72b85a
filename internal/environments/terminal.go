package environments

import (
	"context"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/plan"
)

// CommandResult is returned by run command.
type CommandResult struct {
	Command  string `json:"command"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// InstallResult is returned by install package.
type InstallResult struct {
	Package string `json:"package"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Shell runs commands for the terminal executor.
type Shell interface {
	Run(ctx context.Context, command string, log executor.LogFunc) (*CommandResult, error)
	Install(ctx context.Context, pkg string, log executor.LogFunc) (*InstallResult, error)
}

// NewTerminal builds the terminal executor. "process data" is computed
// in-process whatever the shell backend.
func NewTerminal(sh Shell) *executor.Module {
	table := executor.NewActionTable().
		Register("run command", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			cmd, err := in.RequireString("command")
			if err != nil {
				return nil, err
			}
			return sh.Run(ctx, cmd, log)
		}).
		Register("process data", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			op, err := in.RequireString("operation")
			if err != nil {
				return nil, err
			}
			data, _ := in.Value("data")
			return ProcessData(data, op, log), nil
		}).
		Register("install package", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			pkg, err := in.RequireString("package")
			if err != nil {
				return nil, err
			}
			return sh.Install(ctx, pkg, log)
		})

	m := executor.NewModule(plan.EnvTerminal, table)
	m.Banner = "Terminal"
	return m
}
