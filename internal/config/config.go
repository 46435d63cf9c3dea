// Package config loads flowgraph settings from a YAML file, FLOWGRAPH_*
// environment variables and built-in defaults, in increasing order of
// precedence: defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override; nested keys join with "_",
// e.g. FLOWGRAPH_STORE_DRIVER.
const EnvPrefix = "FLOWGRAPH"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds the configuration for the server and CLI.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Store struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"store"`

	Engine struct {
		MaxConcurrent  int           `mapstructure:"max_concurrent"`
		NodeTimeout    time.Duration `mapstructure:"node_timeout"`
		RetryAttempts  int           `mapstructure:"retry_attempts"`
		RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
		RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
		RunBudget      time.Duration `mapstructure:"run_budget"`
		CostTracking   bool          `mapstructure:"cost_tracking"`
	} `mapstructure:"engine"`

	Providers struct {
		Anthropic struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"anthropic"`
		OpenAI struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"openai"`
		Google struct {
			APIKey string `mapstructure:"api_key"`
		} `mapstructure:"google"`
	} `mapstructure:"providers"`

	GitHub struct {
		APIBase string `mapstructure:"api_base"`
		Token   string `mapstructure:"token"`
	} `mapstructure:"github"`

	Telemetry struct {
		Metrics     bool   `mapstructure:"metrics"`
		Tracing     bool   `mapstructure:"tracing"`
		ServiceName string `mapstructure:"service_name"`
	} `mapstructure:"telemetry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.dsn", "flowgraph.db")

	v.SetDefault("engine.max_concurrent", 8)
	v.SetDefault("engine.node_timeout", 2*time.Minute)
	v.SetDefault("engine.retry_attempts", 3)
	v.SetDefault("engine.retry_base_delay", 250*time.Millisecond)
	v.SetDefault("engine.retry_max_delay", 5*time.Second)
	v.SetDefault("engine.run_budget", time.Duration(0))
	v.SetDefault("engine.cost_tracking", true)

	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.base_url", "")
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.google.api_key", "")

	v.SetDefault("github.api_base", "https://api.github.com")
	v.SetDefault("github.token", "")

	v.SetDefault("telemetry.metrics", true)
	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.service_name", "flowgraph")
}

// Load reads configuration. When path is empty, flowgraph.yaml is looked up
// in the working directory and ./config; a missing file is not an error.
// Provider keys also fall back to the vendors' conventional variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, GITHUB_TOKEN).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fallbacks := map[string][]string{
		"providers.anthropic.api_key": {"FLOWGRAPH_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"providers.openai.api_key":    {"FLOWGRAPH_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"providers.google.api_key":    {"FLOWGRAPH_PROVIDERS_GOOGLE_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"github.token":                {"FLOWGRAPH_GITHUB_TOKEN", "GITHUB_TOKEN"},
	}
	for key, envs := range fallbacks {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flowgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.GitHub.APIBase = strings.TrimRight(strings.TrimSpace(cfg.GitHub.APIBase), "/")
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverMySQL, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Engine.MaxConcurrent < 1 {
		errs = append(errs, errors.New("engine.max_concurrent must be >= 1"))
	}
	if c.Engine.RetryAttempts < 1 {
		errs = append(errs, errors.New("engine.retry_attempts must be >= 1"))
	}
	if c.Engine.NodeTimeout < 0 || c.Engine.RunBudget < 0 {
		errs = append(errs, errors.New("engine timeouts must not be negative"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Logger builds the process logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
