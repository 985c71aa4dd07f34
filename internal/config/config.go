// Package config provides configuration management for orchestratord.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (ORCHESTRATOR_*)
// 3. Project config (.orchestrator/config.yaml in cwd)
// 4. Home config (~/.orchestrator/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all orchestratord configuration.
type Config struct {
	// Mux is the terminal multiplexer binary used to host worker sessions.
	Mux string `yaml:"mux" json:"mux"`

	// AgentBinary is the command each worker session execs on startup.
	AgentBinary string `yaml:"agent_binary" json:"agent_binary"`

	// MonitorIntervalSec is how often the completion monitor polls worker
	// state, in seconds.
	MonitorIntervalSec int `yaml:"monitor_interval_sec" json:"monitor_interval_sec"`

	// MonitorMaxConsecutiveErrors stops the monitor loop after this many
	// consecutive polling failures rather than spinning forever.
	MonitorMaxConsecutiveErrors int `yaml:"monitor_max_consecutive_errors" json:"monitor_max_consecutive_errors"`

	// MaxRetries is the default retry budget assigned to a Feature that does
	// not specify its own.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// MaxParallelWorkers caps how many worker sessions start_parallel_workers
	// will launch concurrently.
	MaxParallelWorkers int `yaml:"max_parallel_workers" json:"max_parallel_workers"`

	// Verification settings
	Verification VerificationConfig `yaml:"verification" json:"verification"`

	// Dashboard settings (outer surface; boundary-only, never read by core
	// operations)
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard"`
}

// VerificationConfig holds verification-command execution settings.
type VerificationConfig struct {
	// TimeoutSec is loaded and merged like every other setting, but no
	// component reads it: a verification run uses the caller's timeout, the
	// session's verification config, or the runner's 300-second default.
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`

	// MaxOutputBytes caps how much combined stdout/stderr is retained.
	MaxOutputBytes int `yaml:"max_output_bytes" json:"max_output_bytes"`

	// AllowedEnv lists environment variable names passed through to a
	// verification subprocess; everything else is stripped.
	AllowedEnv []string `yaml:"allowed_env" json:"allowed_env"`
}

// DashboardConfig holds the optional read-only status dashboard's settings.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Port    int  `yaml:"port" json:"port"`
}

// Default config values (used in resolution and validation).
const (
	defaultMux                         = "tmux"
	defaultAgentBinary                 = "claude"
	defaultMonitorIntervalSec          = 10
	defaultMonitorMaxConsecutiveErrors = 5
	defaultMaxRetries                  = 3
	defaultMaxParallelWorkers          = 10
	defaultVerificationTimeoutSec      = 300
	defaultVerificationMaxOutputBytes  = 1 << 20
	defaultDashboardPort               = 3456
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Mux:                         defaultMux,
		AgentBinary:                 defaultAgentBinary,
		MonitorIntervalSec:          defaultMonitorIntervalSec,
		MonitorMaxConsecutiveErrors: defaultMonitorMaxConsecutiveErrors,
		MaxRetries:                  defaultMaxRetries,
		MaxParallelWorkers:          defaultMaxParallelWorkers,
		Verification: VerificationConfig{
			TimeoutSec:     defaultVerificationTimeoutSec,
			MaxOutputBytes: defaultVerificationMaxOutputBytes,
			AllowedEnv:     []string{"PATH", "HOME", "LANG", "LC_ALL"},
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Port:    defaultDashboardPort,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	if projectConfig, _ := loadFromPath(projectConfigPath()); projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".orchestrator", "config.yaml")
}

func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("ORCHESTRATOR_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".orchestrator", "config.yaml")
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv applies environment variable overrides. Only DASHBOARD_PORT and
// ENABLE_DASHBOARD use unprefixed names, matching their role as the one
// boundary surface meant to be configured the way a plain web service is.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("ORCHESTRATOR_MUX"); v != "" {
		cfg.Mux = v
	}
	if v := os.Getenv("ORCHESTRATOR_AGENT_BINARY"); v != "" {
		cfg.AgentBinary = v
	}
	if v := os.Getenv("ORCHESTRATOR_MONITOR_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MonitorIntervalSec = n
		}
	}
	if v := os.Getenv("ORCHESTRATOR_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("ORCHESTRATOR_MAX_PARALLEL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxParallelWorkers = n
		}
	}
	if v := os.Getenv("ORCHESTRATOR_VERIFICATION_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Verification.TimeoutSec = n
		}
	}
	if v := os.Getenv("DASHBOARD_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dashboard.Port = n
		}
	}
	if v := os.Getenv("ENABLE_DASHBOARD"); v != "" {
		cfg.Dashboard.Enabled = v == "true" || v == "1"
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence whenever a
// field is non-zero. A full settings file always wins field-by-field, never
// as an all-or-nothing replacement, so a project config.yaml that only sets
// mux doesn't reset every other field to zero.
func merge(dst, src *Config) *Config {
	if src.Mux != "" {
		dst.Mux = src.Mux
	}
	if src.AgentBinary != "" {
		dst.AgentBinary = src.AgentBinary
	}
	if src.MonitorIntervalSec != 0 {
		dst.MonitorIntervalSec = src.MonitorIntervalSec
	}
	if src.MonitorMaxConsecutiveErrors != 0 {
		dst.MonitorMaxConsecutiveErrors = src.MonitorMaxConsecutiveErrors
	}
	if src.MaxRetries != 0 {
		dst.MaxRetries = src.MaxRetries
	}
	if src.MaxParallelWorkers != 0 {
		dst.MaxParallelWorkers = src.MaxParallelWorkers
	}
	if src.Verification.TimeoutSec != 0 {
		dst.Verification.TimeoutSec = src.Verification.TimeoutSec
	}
	if src.Verification.MaxOutputBytes != 0 {
		dst.Verification.MaxOutputBytes = src.Verification.MaxOutputBytes
	}
	if len(src.Verification.AllowedEnv) > 0 {
		dst.Verification.AllowedEnv = src.Verification.AllowedEnv
	}
	if src.Dashboard.Enabled {
		dst.Dashboard.Enabled = true
	}
	if src.Dashboard.Port != 0 {
		dst.Dashboard.Port = src.Dashboard.Port
	}
	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.orchestrator/config.yaml"
	SourceProject Source = ".orchestrator/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// ResolvedConfig shows config values with their sources, for "status
// --show-config"-style introspection.
type ResolvedConfig struct {
	Mux                resolved `json:"mux"`
	AgentBinary        resolved `json:"agent_binary"`
	MonitorIntervalSec resolved `json:"monitor_interval_sec"`
	MaxRetries         resolved `json:"max_retries"`
	MaxParallelWorkers resolved `json:"max_parallel_workers"`
}

func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

func resolveIntField(home, project, env, flag, def int) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != 0 {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != 0 {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != 0 {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != 0 {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// Resolve returns configuration with source tracking, using the same
// precedence chain as Load: flags > env > project > home > defaults.
func Resolve(flagOverrides *Config) *ResolvedConfig {
	home, _ := loadFromPath(homeConfigPath())
	project, _ := loadFromPath(projectConfigPath())
	env := applyEnv(&Config{})
	flag := flagOverrides
	if flag == nil {
		flag = &Config{}
	}

	var h, p Config
	if home != nil {
		h = *home
	}
	if project != nil {
		p = *project
	}

	return &ResolvedConfig{
		Mux:                resolveStringField(h.Mux, p.Mux, env.Mux, flag.Mux, defaultMux),
		AgentBinary:        resolveStringField(h.AgentBinary, p.AgentBinary, env.AgentBinary, flag.AgentBinary, defaultAgentBinary),
		MonitorIntervalSec: resolveIntField(h.MonitorIntervalSec, p.MonitorIntervalSec, env.MonitorIntervalSec, flag.MonitorIntervalSec, defaultMonitorIntervalSec),
		MaxRetries:         resolveIntField(h.MaxRetries, p.MaxRetries, env.MaxRetries, flag.MaxRetries, defaultMaxRetries),
		MaxParallelWorkers: resolveIntField(h.MaxParallelWorkers, p.MaxParallelWorkers, env.MaxParallelWorkers, flag.MaxParallelWorkers, defaultMaxParallelWorkers),
	}
}
