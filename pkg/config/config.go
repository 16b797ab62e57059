// Package config defines the simulator's layered configuration: built-in
// defaults, an optional YAML file, and environment variables, loaded by
// pkg/config.Loader.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for a simulator run.
type Config struct {
	App        AppConfig        `koanf:"app"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Database   DatabaseConfig   `koanf:"database"`
	Cache      CacheConfig      `koanf:"cache"`
	Report     ReportConfig     `koanf:"report"`
	Simulation SimulationConfig `koanf:"simulation"`
}

// AppConfig carries process-wide identity used in logs and trace resources.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig configures the slog + lumberjack logger.
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"` // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	ListenAddr string `koanf:"listen_addr"`
	Path       string `koanf:"path"`
	Namespace  string `koanf:"namespace"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DatabaseConfig configures the optional Postgres result store.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
	Enabled         bool          `koanf:"enabled"`
}

// DSN returns a driver-appropriate connection string.
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql", "":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	default:
		return ""
	}
}

// CacheConfig configures the topology shortest-path memoisation cache.
type CacheConfig struct {
	Driver     string        `koanf:"driver"` // memory, redis
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"`
}

func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReportConfig configures the optional XLSX metrics summary export.
type ReportConfig struct {
	Enabled   bool   `koanf:"enabled"`
	OutputDir string `koanf:"output_dir"`
}

// SimulationConfig carries the TrustEdge policy's tuning knobs and the
// feature flags a scenario run may toggle. Any of these may be overridden
// by the run's positional parameters (§6).
type SimulationConfig struct {
	Algorithm string `koanf:"algorithm"` // trustedge_v3, kubernetes_inspired, first_fit_baseline
	TimeSteps int    `koanf:"time_steps"`
	Seed      int64  `koanf:"seed"`

	EnableFailurePrediction     bool `koanf:"enable_failure_prediction"`
	EnableP2PLayerFetch         bool `koanf:"enable_p2p_layer_fetch"`
	EnableLiveMigration         bool `koanf:"enable_live_migration"`
	EnableProactiveSLAMigration bool `koanf:"enable_proactive_sla_migration"`

	WindowSize           int     `koanf:"window_size"`
	ReliabilityThreshold float64 `koanf:"reliability_threshold"`
	Lookahead            int     `koanf:"lookahead"`
	DelayThreshold       float64 `koanf:"delay_threshold"`

	ResultsDir  string `koanf:"results_dir"`
	FilePrefix  string `koanf:"file_prefix"`
}

// Validate checks the fields the loader cannot default its way out of.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	validAlgorithms := map[string]bool{
		"trustedge_v3":        true,
		"kubernetes_inspired": true,
		"first_fit_baseline":  true,
		"":                    true,
	}
	if !validAlgorithms[c.Simulation.Algorithm] {
		errs = append(errs, fmt.Sprintf("simulation.algorithm must be one of: trustedge_v3, kubernetes_inspired, first_fit_baseline, got %s", c.Simulation.Algorithm))
	}

	if c.Simulation.TimeSteps < 0 {
		errs = append(errs, "simulation.time_steps must be non-negative")
	}

	if c.Simulation.ReliabilityThreshold < 0 || c.Simulation.ReliabilityThreshold > 100 {
		errs = append(errs, fmt.Sprintf("simulation.reliability_threshold must be between 0 and 100, got %f", c.Simulation.ReliabilityThreshold))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
