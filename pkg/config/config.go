package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig                 `json:"app" yaml:"app"`
	Gateways     map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers    map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory       MemoryConfig              `json:"memory" yaml:"memory"`
	Environments EnvironmentsConfig        `json:"environments" yaml:"environments"`
	HTTP         HTTPConfig                `json:"http" yaml:"http"`
	Logging      LoggingConfig             `json:"logging" yaml:"logging"`
	Policy       PolicyConfig              `json:"policy" yaml:"policy"`
}

type AppConfig struct {
	Name       string `json:"name" yaml:"name"`
	Workspace  string `json:"workspace" yaml:"workspace"`
	ReportsDir string `json:"reports_dir" yaml:"reports_dir"`
	PromptsDir string `json:"prompts_dir" yaml:"prompts_dir"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

// EnvConfig selects the backend of one execution environment.
type EnvConfig struct {
	Mode      string `json:"mode" yaml:"mode"`
	LatencyMS int    `json:"latency_ms" yaml:"latency_ms"`
}

type EnvironmentsConfig struct {
	Browser    EnvConfig `json:"browser" yaml:"browser"`
	Terminal   EnvConfig `json:"terminal" yaml:"terminal"`
	FileSystem EnvConfig `json:"file_system" yaml:"file_system"`
	Headless   bool      `json:"headless" yaml:"headless"`
}

type HTTPConfig struct {
	Addr    string `json:"addr" yaml:"addr"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	LLMLogPath string `json:"llm_log_path" yaml:"llm_log_path"`
}

type PolicyConfig struct {
	DenyCommands   []string `json:"deny_commands" yaml:"deny_commands"`
	AllowInstall   bool     `json:"allow_install" yaml:"allow_install"`
	InstallCommand string   `json:"install_command" yaml:"install_command"`
}

// ConfigError is returned when the configuration is unusable.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrMissingProvider ConfigError = "no enabled provider with an api key: set AUTOPILOT_OPENAI_API_KEY or enable a provider in the config file"
)

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:       "autopilot",
			Workspace:  "./workspace",
			ReportsDir: "./reports",
			PromptsDir: "./prompts",
		},
		Gateways:  map[string]GatewayConfig{},
		Providers: map[string]ProviderConfig{},
		Memory: MemoryConfig{
			Type: "sqlite",
			Path: "autopilot.db",
		},
		Environments: EnvironmentsConfig{
			Browser:    EnvConfig{Mode: "simulated"},
			Terminal:   EnvConfig{Mode: "simulated"},
			FileSystem: EnvConfig{Mode: "simulated"},
			Headless:   true,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			LLMLogPath: "llm.jsonl",
		},
		Policy: PolicyConfig{
			DenyCommands:   []string{`rm\s+-rf`, `mkfs`, `shutdown`, `reboot`},
			InstallCommand: "apt-get install -y %s",
		},
	}
}

// Load reads a JSON or YAML config file over the defaults and applies
// environment overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	loadFromEnv(cfg)
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(expanded, cfg)
	default:
		err = json.Unmarshal(expanded, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if key := os.Getenv("AUTOPILOT_OPENAI_API_KEY"); key != "" {
		p := cfg.Providers["openai"]
		p.APIKey = key
		p.Enabled = true
		cfg.Providers["openai"] = p
	}
	if model := os.Getenv("AUTOPILOT_MODEL"); model != "" {
		if name, p := cfg.GetDefaultProvider(); name != "" {
			p.Model = model
			cfg.Providers[name] = p
		}
	}
	if ws := os.Getenv("AUTOPILOT_WORKSPACE"); ws != "" {
		cfg.App.Workspace = ws
	}
	if level := os.Getenv("AUTOPILOT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

var (
	validModes   = map[string]bool{"": true, "simulated": true, "live": true}
	validLevels  = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validFormats = map[string]bool{"": true, "json": true, "text": true}
)

// Validate checks the fields that cannot be defaulted. A provider is not
// required here; commands that need one call RequireProvider.
func (c *Config) Validate() error {
	var problems []string
	envs := map[string]EnvConfig{
		"browser":     c.Environments.Browser,
		"terminal":    c.Environments.Terminal,
		"file_system": c.Environments.FileSystem,
	}
	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env := envs[name]
		if !validModes[env.Mode] {
			problems = append(problems, fmt.Sprintf("environments.%s.mode: unknown mode %q", name, env.Mode))
		}
		if env.LatencyMS < 0 {
			problems = append(problems, fmt.Sprintf("environments.%s.latency_ms: must not be negative", name))
		}
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", c.Logging.Level))
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		problems = append(problems, fmt.Sprintf("logging.format: unknown format %q", c.Logging.Format))
	}
	for _, p := range c.Policy.DenyCommands {
		if _, err := regexp.Compile(p); err != nil {
			problems = append(problems, fmt.Sprintf("policy.deny_commands: %v", err))
		}
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		problems = append(problems, "http.addr: required when http is enabled")
	}
	for name, gw := range c.Gateways {
		if gw.Enabled && gw.Token == "" {
			problems = append(problems, fmt.Sprintf("gateways.%s.token: required when enabled", name))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return ConfigError("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// RequireProvider returns the default provider or ErrMissingProvider.
func (c *Config) RequireProvider() (string, ProviderConfig, error) {
	name, p := c.GetDefaultProvider()
	if name == "" || p.APIKey == "" {
		return "", ProviderConfig{}, ErrMissingProvider
	}
	return name, p, nil
}

// GetDefaultProvider returns the first enabled provider in name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGatewayConfig returns the named gateway's config if it is enabled.
func (c *Config) GetGatewayConfig(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled {
		return gw, true
	}
	return GatewayConfig{}, false
}
