// Package config holds the pipeline's run configuration: concurrency caps,
// container defaults, model endpoint, and budgets. It is YAML-backed with an
// environment-override pass applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
)

// Config holds all run-time configuration for a mutation-synthesis run.
type Config struct {
	// Name/Version identify the run in logs and artifact headers.
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Model     ModelConfig     `yaml:"model"`
	Container ContainerConfig `yaml:"container"`
	Git       GitConfig       `yaml:"git"`
	Budget    BudgetConfig    `yaml:"budget"`
	Limits    LimitsConfig    `yaml:"limits"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ModelConfig describes the code-generating model endpoint.
type ModelConfig struct {
	Identifier string `yaml:"identifier"`
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"-"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// ContainerConfig holds defaults for base/env image builds and per-snapshot
// containers.
type ContainerConfig struct {
	MemoryLimit      string `yaml:"memory_limit"`
	CPULimit         string `yaml:"cpu_limit"`
	TestTimeout      string `yaml:"test_timeout"`
	CallGraphTimeout string `yaml:"callgraph_timeout"`
	NetworkEnabled   bool   `yaml:"network_enabled"`
}

// GitConfig controls how commits are cloned for per-commit workers.
type GitConfig struct {
	CloneToken string `yaml:"-"`
	CacheDir   string `yaml:"cache_dir"`
}

// BudgetConfig caps the mutator loop and the per-commit sample.
type BudgetConfig struct {
	MaxIterations    int     `yaml:"max_iterations"`
	MaxMutations     int     `yaml:"max_mutations"`
	MaxCost          float64 `yaml:"max_cost"`
	CostPerModelCall float64 `yaml:"cost_per_model_call"`
	SampleCommits    int     `yaml:"sample_commits"`
	Seed             int64   `yaml:"seed"`
}

// LimitsConfig holds the global process-wide concurrency caps.
type LimitsConfig struct {
	ExecConcurrency  int `yaml:"exec_concurrency"`
	ModelConcurrency int `yaml:"model_concurrency"`
}

// LoggingConfig controls the zap-backed logger's verbosity.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// StrategyMix is the default per-strategy share of the mutation quota.
var StrategyMix = map[string]float64{
	"priority_aware": 0.10,
	"empty_class":    0.10,
	"empty_function": 0.80,
}

// DefaultConfig returns the baseline configuration; every field here is
// overridable by a YAML file and then by environment variables.
func DefaultConfig() *Config {
	return &Config{
		Name:    "swesynth",
		Version: "0.1.0",

		Model: ModelConfig{
			Identifier: "gpt-4o-mini",
			Endpoint:   "https://api.openai.com/v1/chat/completions",
			Timeout:    "120s",
			MaxRetries: 3,
		},

		Container: ContainerConfig{
			MemoryLimit:      "4g",
			CPULimit:         "2",
			TestTimeout:      "2h",
			CallGraphTimeout: "15h",
			NetworkEnabled:   false,
		},

		Git: GitConfig{
			CacheDir: ".swesynth-cache",
		},

		Budget: BudgetConfig{
			MaxIterations:    200,
			MaxMutations:     20,
			MaxCost:          10.0,
			CostPerModelCall: 0.01,
			SampleCommits:    5,
			Seed:             42,
		},

		Limits: LimitsConfig{
			ExecConcurrency:  defaultExecConcurrency(),
			ModelConcurrency: 16,
		},

		Logging: LoggingConfig{Debug: false},
	}
}

// Load reads a YAML config file, falling back to defaults if it does not
// exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.logStartup()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.logStartup()
	return cfg, nil
}

// Save writes the configuration back out as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies the recognized environment variables:
// concurrency caps, call-graph timeout, model identifier/endpoint, and an
// optional git clone token. An explicit env var always wins over whatever
// the YAML file or default set.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SWESYNTH_MODEL_ID"); v != "" {
		c.Model.Identifier = v
	}
	if v := os.Getenv("SWESYNTH_MODEL_ENDPOINT"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("SWESYNTH_MODEL_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("SWESYNTH_GIT_TOKEN"); v != "" {
		c.Git.CloneToken = v
	}
	if v := os.Getenv("SWESYNTH_CALLGRAPH_TIMEOUT"); v != "" {
		c.Container.CallGraphTimeout = v
	}
	if v := os.Getenv("SWESYNTH_EXEC_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.ExecConcurrency = n
		}
	}
	if v := os.Getenv("SWESYNTH_MODEL_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.ModelConcurrency = n
		}
	}
	if os.Getenv("SWESYNTH_DEBUG") == "1" {
		c.Logging.Debug = true
	}
}

// defaultExecConcurrency is half the machine's CPUs, at least one: each
// exec slot holds a live container running a test suite.
func defaultExecConcurrency() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// TestTimeoutDuration parses Container.TestTimeout, defaulting to 2h.
func (c *Config) TestTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Container.TestTimeout)
	if err != nil {
		return 2 * time.Hour
	}
	return d
}

// CallGraphTimeoutDuration parses Container.CallGraphTimeout, defaulting to 15h.
func (c *Config) CallGraphTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Container.CallGraphTimeout)
	if err != nil {
		return 15 * time.Hour
	}
	return d
}

// ModelTimeoutDuration parses Model.Timeout, defaulting to 120s.
func (c *Config) ModelTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Model.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Validate checks the configuration is usable before a run starts.
func (c *Config) Validate() error {
	if c.Model.Endpoint == "" {
		return fmt.Errorf("model endpoint not configured")
	}
	if c.Limits.ExecConcurrency <= 0 || c.Limits.ModelConcurrency <= 0 {
		return fmt.Errorf("concurrency limits must be positive")
	}
	return nil
}

// logStartup emits a one-line summary of the effective config at info level.
func (c *Config) logStartup() {
	logging.For(logging.Orchestrator).Sugar().Infow("config loaded",
		"model", c.Model.Identifier,
		"exec_concurrency", c.Limits.ExecConcurrency,
		"model_concurrency", c.Limits.ModelConcurrency,
	)
}
