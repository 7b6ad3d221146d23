// Package config provides configuration management with CLI > env > file precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/vendshop/aiadvent/internal/orchestrator"
)

// FileName is the config file looked up in $HOME and then in the working directory.
const FileName = ".aiadvent.yml"

// Config holds all configuration options for aiadvent.
type Config struct {
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api-key"`
	APIBase     string        `yaml:"api-base"`
	Mode        string        `yaml:"mode"`
	Stream      bool          `yaml:"stream"`
	Timeout     time.Duration `yaml:"timeout"`
	LogLevel    string        `yaml:"log-level"`
	LogFormat   string        `yaml:"log-format"`
	MetricsAddr string        `yaml:"metrics-addr"`
	NoColor     bool          `yaml:"no-color"`

	SweepTemperatures []float64 `yaml:"sweep-temperatures"`
	RestrictionModel  string    `yaml:"restriction-model"`
	OTLPEndpoint      string    `yaml:"otlp-endpoint"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:     "deepseek-chat",
		APIBase:   "https://api.deepseek.com",
		Mode:      string(orchestrator.ModeSingle),
		Stream:    true,
		Timeout:   120 * time.Second,
		LogLevel:  "warn",
		LogFormat: "console",

		SweepTemperatures: []float64{0.0, 0.7, 1.2},
	}
}

// Load builds a Config by merging CLI flags, environment variables, and config files.
// Precedence: CLI args > env vars > .env > config files ($HOME, then cwd; cwd wins).
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	if home, err := os.UserHomeDir(); err == nil {
		if err := cfg.loadYAML(filepath.Join(home, FileName)); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := cfg.loadYAML(FileName); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// .env never overrides variables that are already set.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if _, err := orchestrator.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %s", c.Timeout)
	}
	if c.APIBase == "" {
		return fmt.Errorf("config: api-base is required")
	}
	if len(c.SweepTemperatures) == 0 {
		return fmt.Errorf("config: at least one sweep temperature is required")
	}
	for _, t := range c.SweepTemperatures {
		if t < 0 || t > 2 {
			return fmt.Errorf("config: sweep temperature %.1f is outside 0..2", t)
		}
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AIADVENT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("DEEPSEEK_API_BASE"); v != "" {
		c.APIBase = v
	}
	if v := os.Getenv("AIADVENT_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("AIADVENT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("AIADVENT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.OTLPEndpoint = v
	}
}

func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("aiadvent", flag.ContinueOnError)
	fs.StringVar(&c.Model, "model", c.Model, "Model used by single mode, the sweep and the pipeline")
	fs.StringVar(&c.APIKey, "api-key", c.APIKey, "API key")
	fs.StringVar(&c.APIBase, "api-base", c.APIBase, "API base URL")
	fs.StringVar(&c.Mode, "mode", c.Mode, "Initial mode (single, restriction, models, sweep, pipeline)")
	fs.BoolVar(&c.Stream, "stream", c.Stream, "Stream single-mode answers")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "HTTP timeout per call")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (console, json)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve /metrics on this address")
	fs.BoolVar(&c.NoColor, "no-color", c.NoColor, "Disable colored output")
	fs.Float64SliceVar(&c.SweepTemperatures, "sweep-temperatures", c.SweepTemperatures, "Temperatures compared by sweep mode")
	fs.StringVar(&c.RestrictionModel, "restriction-model", c.RestrictionModel, "Model used by restriction mode (default: the weak catalog model)")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", c.OTLPEndpoint, "Export traces over OTLP/gRPC to this host:port")
	return fs.Parse(args)
}
