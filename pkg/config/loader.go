package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/marcoskonzen/trustedge/pkg/apperror"
)

const (
	envPrefix    = "TRUSTEDGE_"
	configEnvVar = "CONFIG_PATH"
)

// Loader loads configuration from layered sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/trustedge/config.yaml",
		},
		envPrefix: envPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type LoaderOption func(*Loader)

func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.configPaths = paths }
}

func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// Load resolves configuration with priority: defaults < config file < env vars.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeConfigLoadFailed, "loading built-in defaults")
	}

	if err := l.loadConfigFile(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeConfigLoadFailed, "loading environment overrides")
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeConfigLoadFailed, "unmarshalling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeConfigLoadFailed, "validating config")
	}

	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"app.name":        "trustedge-sim",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"metrics.enabled":     true,
		"metrics.listen_addr": ":9090",
		"metrics.path":        "/metrics",
		"metrics.namespace":   "trustedge",

		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "trustedge-sim",
		"tracing.sample_rate":  0.1,

		"database.enabled":            false,
		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":          "trustedge",
		"database.username":          "postgres",
		"database.password":          "",
		"database.ssl_mode":          "disable",
		"database.max_open_conns":    10,
		"database.max_idle_conns":    2,
		"database.conn_max_lifetime": 5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":      true,
		"database.migrations_path":   "db/migrations",

		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.db":          0,
		"cache.default_ttl": 10 * time.Minute,
		"cache.max_entries": 10000,

		"report.enabled":    false,
		"report.output_dir": "results",

		"simulation.algorithm":                       "trustedge_v3",
		"simulation.time_steps":                      1000,
		"simulation.seed":                             0,
		"simulation.enable_failure_prediction":        true,
		"simulation.enable_p2p_layer_fetch":           false,
		"simulation.enable_live_migration":            true,
		"simulation.enable_proactive_sla_migration":   true,
		"simulation.window_size":                      5,
		"simulation.reliability_threshold":            70.0,
		"simulation.lookahead":                        10,
		"simulation.delay_threshold":                   1.0,
		"simulation.results_dir":                      "results",
		"simulation.file_prefix":                       "",
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, l.envPrefix)),
			"_", ".", 1,
		)
	}), nil)
}

func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func Load() (*Config, error) {
	return NewLoader().Load()
}
