package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/autopilot/internal/agent"
	"github.com/rahul/autopilot/internal/environments"
	"github.com/rahul/autopilot/internal/governance"
	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/plan"
	"github.com/rahul/autopilot/internal/store"
	"github.com/rahul/autopilot/pkg/config"
)

// app holds everything a command needs, built from the config file.
type app struct {
	cfg    *config.Config
	logger *observability.Logger
	envs   *environments.Set
	runs   *store.RunStore
	orch   *agent.Orchestrator
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if live {
		cfg.Environments.Browser.Mode = string(environments.ModeLive)
		cfg.Environments.Terminal.Mode = string(environments.ModeLive)
		cfg.Environments.FileSystem.Mode = string(environments.ModeLive)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the config into an orchestrator. With requireModel the
// command fails when no provider is configured; otherwise planning is
// unavailable and reports fall back to the execution summary.
func newApp(requireModel bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     os.Stderr,
		LLMLogPath: cfg.Logging.LLMLogPath,
	})

	policy, err := buildPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	envs, err := environments.Build(environmentOptions(cfg, policy))
	if err != nil {
		return nil, fmt.Errorf("failed to build environments: %w", err)
	}

	runs, err := store.NewRunStore(cfg.Memory.Path)
	if err != nil {
		envs.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, envs: envs, runs: runs}
	a.orch = &agent.Orchestrator{
		Dispatcher: envs.Registry,
		Runs:       runs,
		Logger:     logger,
		ReportsDir: cfg.App.ReportsDir,
	}

	name, provider, err := cfg.RequireProvider()
	if err != nil {
		if requireModel {
			a.Close()
			return nil, err
		}
		logger.Slog().Warn("No model provider configured; planning is disabled.")
		return a, nil
	}

	model, err := newModel(name, provider)
	if err != nil {
		a.Close()
		return nil, err
	}
	prompts := agent.NewPromptManager(cfg.App.PromptsDir)
	a.orch.Planner = agent.NewPlanner(model, prompts, envs.Registry.Describe(), logger)
	a.orch.Reporter = agent.NewReporter(model, prompts, logger)
	return a, nil
}

func (a *app) Close() {
	a.envs.Close()
	if err := a.runs.Close(); err != nil {
		a.logger.Slog().Error("Failed to close run store.", "error", err)
	}
}

func buildPolicy(cfg config.PolicyConfig) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	for _, pattern := range cfg.DenyCommands {
		if err := gov.DenyArguments(pattern); err != nil {
			return nil, err
		}
	}
	if !cfg.AllowInstall {
		gov.DenyAction(string(plan.EnvTerminal), "install package")
	}
	return gov, nil
}

func environmentOptions(cfg *config.Config, policy governance.PolicyEngine) environments.Options {
	env := func(c config.EnvConfig) environments.EnvOptions {
		// Modes were checked by Validate.
		mode, _ := environments.ParseMode(c.Mode)
		return environments.EnvOptions{
			Mode:    mode,
			Latency: time.Duration(c.LatencyMS) * time.Millisecond,
		}
	}
	return environments.Options{
		Browser:        env(cfg.Environments.Browser),
		Terminal:       env(cfg.Environments.Terminal),
		FileSystem:     env(cfg.Environments.FileSystem),
		Workspace:      cfg.App.Workspace,
		Headless:       cfg.Environments.Headless,
		InstallCommand: cfg.Policy.InstallCommand,
		Policy:         policy,
	}
}

func newModel(name string, p config.ProviderConfig) (llms.Model, error) {
	switch name {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s is not supported", name)
	}
}

// consoleSink prints run progress to w.
func consoleSink(w io.Writer) observability.Sink {
	return observability.SinkFunc(func(message, category string) {
		if category == observability.CategoryError {
			fmt.Fprintf(w, "! %s\n", message)
			return
		}
		fmt.Fprintf(w, "> %s\n", message)
	})
}
