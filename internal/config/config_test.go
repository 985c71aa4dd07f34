package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Mux != "tmux" {
		t.Errorf("Default Mux = %q, want %q", cfg.Mux, "tmux")
	}
	if cfg.AgentBinary != "claude" {
		t.Errorf("Default AgentBinary = %q, want %q", cfg.AgentBinary, "claude")
	}
	if cfg.MonitorIntervalSec != 10 {
		t.Errorf("Default MonitorIntervalSec = %d, want 10", cfg.MonitorIntervalSec)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Default MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.MaxParallelWorkers != 10 {
		t.Errorf("Default MaxParallelWorkers = %d, want 10", cfg.MaxParallelWorkers)
	}
	if cfg.Verification.TimeoutSec != 300 {
		t.Errorf("Default Verification.TimeoutSec = %d, want 300", cfg.Verification.TimeoutSec)
	}
	if cfg.Verification.MaxOutputBytes != 1<<20 {
		t.Errorf("Default Verification.MaxOutputBytes = %d, want %d", cfg.Verification.MaxOutputBytes, 1<<20)
	}
	if !cfg.Dashboard.Enabled {
		t.Error("Default Dashboard.Enabled = false, want true")
	}
	if cfg.Dashboard.Port != 3456 {
		t.Errorf("Default Dashboard.Port = %d, want 3456", cfg.Dashboard.Port)
	}
}

func TestMerge(t *testing.T) {
	dst := Default()
	src := &Config{
		Mux:         "screen",
		AgentBinary: "my-agent",
	}

	result := merge(dst, src)

	if result.Mux != "screen" {
		t.Errorf("merge Mux = %q, want %q", result.Mux, "screen")
	}
	if result.AgentBinary != "my-agent" {
		t.Errorf("merge AgentBinary = %q, want %q", result.AgentBinary, "my-agent")
	}
	// Defaults should be preserved when not overridden
	if result.MaxRetries != 3 {
		t.Errorf("merge preserved MaxRetries = %d, want 3", result.MaxRetries)
	}
}

func TestMerge_DashboardEnabledIsStickyTrue(t *testing.T) {
	dst := Default()
	src := &Config{Dashboard: DashboardConfig{Enabled: true}}

	result := merge(dst, src)
	if !result.Dashboard.Enabled {
		t.Error("merge should turn Dashboard.Enabled on when src sets it true")
	}
}

func TestMerge_AllowedEnvOverride(t *testing.T) {
	dst := Default()
	src := &Config{Verification: VerificationConfig{AllowedEnv: []string{"PATH"}}}

	result := merge(dst, src)
	if len(result.Verification.AllowedEnv) != 1 || result.Verification.AllowedEnv[0] != "PATH" {
		t.Errorf("merge AllowedEnv = %v, want [PATH]", result.Verification.AllowedEnv)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error reading a missing file")
	}
	if cfg != nil {
		t.Error("expected nil config on read error")
	}
}

func TestLoadFromPathParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "mux: screen\nmax_retries: 7\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("loadFromPath: %v", err)
	}
	if cfg.Mux != "screen" {
		t.Errorf("Mux = %q, want %q", cfg.Mux, "screen")
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.MaxRetries)
	}
}

func TestApplyEnvOverridesMonitorInterval(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MONITOR_INTERVAL_SEC", "42")
	cfg := applyEnv(Default())
	if cfg.MonitorIntervalSec != 42 {
		t.Errorf("MonitorIntervalSec = %d, want 42", cfg.MonitorIntervalSec)
	}
}

func TestApplyEnvDashboardPort(t *testing.T) {
	t.Setenv("DASHBOARD_PORT", "9999")
	t.Setenv("ENABLE_DASHBOARD", "1")
	cfg := applyEnv(Default())
	if cfg.Dashboard.Port != 9999 {
		t.Errorf("Dashboard.Port = %d, want 9999", cfg.Dashboard.Port)
	}
	if !cfg.Dashboard.Enabled {
		t.Error("Dashboard.Enabled should be true")
	}
}

func TestApplyEnvDashboardDisable(t *testing.T) {
	t.Setenv("ENABLE_DASHBOARD", "false")
	cfg := applyEnv(Default())
	if cfg.Dashboard.Enabled {
		t.Error("ENABLE_DASHBOARD=false should disable the dashboard")
	}
}

func TestLoadPrecedenceFlagsBeatEverything(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ORCHESTRATOR_CONFIG", filepath.Join(project, "config.yaml"))
	t.Setenv("ORCHESTRATOR_MUX", "env-mux")

	if err := os.MkdirAll(filepath.Join(home, ".orchestrator"), 0700); err != nil {
		t.Fatalf("mkdir home config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(home, ".orchestrator", "config.yaml"), []byte("mux: home-mux\n"), 0600); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(project, "config.yaml"), []byte("mux: project-mux\n"), 0600); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := Load(&Config{Mux: "flag-mux"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mux != "flag-mux" {
		t.Errorf("Mux = %q, want flag-mux (flags must win)", cfg.Mux)
	}
}

func TestResolveTracksSource(t *testing.T) {
	rc := Resolve(nil)
	if rc.MaxRetries.Source != SourceDefault {
		t.Errorf("MaxRetries.Source = %q, want default (no overrides set)", rc.MaxRetries.Source)
	}
}
