// Package environments implements the browser, terminal and file system
// executors. Each executor is an executor.Module whose actions delegate to a
// backend: a deterministic simulated backend (the default) or a live one
// driving a real browser, shell or workspace directory.
package environments

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/governance"
)

// Mode selects the backend of an environment.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

// ParseMode defaults to simulated for an empty string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSimulated:
		return ModeSimulated, nil
	case ModeLive:
		return ModeLive, nil
	}
	return "", fmt.Errorf("unknown environment mode %q", s)
}

// EnvOptions configures one environment.
type EnvOptions struct {
	Mode    Mode
	Latency time.Duration
}

// Options configures Build.
type Options struct {
	Browser    EnvOptions
	Terminal   EnvOptions
	FileSystem EnvOptions

	// Workspace is the root directory of the live file system backend and
	// the working directory of the live shell.
	Workspace string
	// Headless controls the live browser window.
	Headless bool
	// InstallCommand is the live shell's package install template; %s is
	// replaced by the package name.
	InstallCommand string
	Policy         governance.PolicyEngine
}

// Set is the built registry plus the resources its backends hold.
type Set struct {
	Registry *executor.Registry
	closers  []func()
}

// Close releases backend resources such as a running browser.
func (s *Set) Close() {
	for _, c := range s.closers {
		c()
	}
}

// Build creates the three executors and registers them.
func Build(opts Options) (*Set, error) {
	set := &Set{}

	var browser BrowserBackend
	switch opts.Browser.Mode {
	case ModeLive:
		chrome := NewChromeBrowser(opts.Headless)
		set.closers = append(set.closers, chrome.Close)
		browser = chrome
	default:
		browser = &SimulatedBrowser{Latency: opts.Browser.Latency}
	}

	var shell Shell
	switch opts.Terminal.Mode {
	case ModeLive:
		shell = &LiveShell{Dir: opts.Workspace, Policy: opts.Policy, InstallCommand: opts.InstallCommand}
	default:
		shell = &SimulatedShell{Latency: opts.Terminal.Latency}
	}

	var store FileStore
	switch opts.FileSystem.Mode {
	case ModeLive:
		ws, err := NewWorkspaceStore(opts.Workspace, opts.Policy)
		if err != nil {
			return nil, err
		}
		store = ws
	default:
		store = &SimulatedFileStore{Latency: opts.FileSystem.Latency}
	}

	reg, err := executor.NewRegistry(NewBrowser(browser), NewTerminal(shell), NewFileSystem(store))
	if err != nil {
		set.Close()
		return nil, err
	}
	set.Registry = reg
	return set, nil
}

// pause waits for d, returning early with ctx's error if it is cancelled.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
