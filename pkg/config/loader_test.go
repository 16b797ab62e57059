package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "trustedge-sim" {
		t.Errorf("expected app name 'trustedge-sim', got %s", cfg.App.Name)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Simulation.Algorithm != "trustedge_v3" {
		t.Errorf("expected default algorithm 'trustedge_v3', got %s", cfg.Simulation.Algorithm)
	}
	if cfg.Simulation.TimeSteps != 1000 {
		t.Errorf("expected default time_steps 1000, got %d", cfg.Simulation.TimeSteps)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: custom-sim
  version: 2.0.0
  environment: staging
log:
  level: debug
simulation:
  algorithm: kubernetes_inspired
  time_steps: 42
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader(WithConfigPaths(configPath))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-sim" {
		t.Errorf("expected app name 'custom-sim', got %s", cfg.App.Name)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}
	if cfg.Simulation.Algorithm != "kubernetes_inspired" {
		t.Errorf("expected algorithm 'kubernetes_inspired', got %s", cfg.Simulation.Algorithm)
	}
	if cfg.Simulation.TimeSteps != 42 {
		t.Errorf("expected time_steps 42, got %d", cfg.Simulation.TimeSteps)
	}
}

func TestLoader_LoadFromEnv(t *testing.T) {
	os.Setenv("TRUSTEDGE_APP_NAME", "env-sim")
	os.Setenv("TRUSTEDGE_SIMULATION_TIME_STEPS", "7")
	defer func() {
		os.Unsetenv("TRUSTEDGE_APP_NAME")
		os.Unsetenv("TRUSTEDGE_SIMULATION_TIME_STEPS")
	}()

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-sim" {
		t.Errorf("expected app name 'env-sim', got %s", cfg.App.Name)
	}
	if cfg.Simulation.TimeSteps != 7 {
		t.Errorf("expected time_steps 7, got %d", cfg.Simulation.TimeSteps)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: file-sim
simulation:
  time_steps: 11
`
	os.WriteFile(configPath, []byte(configContent), 0644)

	os.Setenv("TRUSTEDGE_APP_NAME", "env-override")
	defer os.Unsetenv("TRUSTEDGE_APP_NAME")

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-override" {
		t.Errorf("expected env override, got %s", cfg.App.Name)
	}
	if cfg.Simulation.TimeSteps != 11 {
		t.Errorf("expected time_steps from file 11, got %d", cfg.Simulation.TimeSteps)
	}
}

func TestLoader_WithEnvPrefix(t *testing.T) {
	os.Setenv("CUSTOM_APP_NAME", "custom-prefix-sim")
	defer os.Unsetenv("CUSTOM_APP_NAME")

	cfg, err := NewLoader(WithEnvPrefix("CUSTOM_")).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-prefix-sim" {
		t.Errorf("expected 'custom-prefix-sim', got %s", cfg.App.Name)
	}
}

func TestMustLoad_Success(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustLoad should not panic with valid config")
		}
	}()

	cfg := MustLoad()
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoad_Simple(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoader_ConfigEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom-config.yaml")

	configContent := `
app:
  name: config-env-var-sim
`
	os.WriteFile(configPath, []byte(configContent), 0644)

	os.Setenv("CONFIG_PATH", configPath)
	defer os.Unsetenv("CONFIG_PATH")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "config-env-var-sim" {
		t.Errorf("expected 'config-env-var-sim', got %s", cfg.App.Name)
	}
}
