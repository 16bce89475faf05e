// Package config provides YAML-based configuration loading for Inkwell.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Inkwell configuration, loaded from inkwell.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Notify    NotifyConfig    `yaml:"notify"`
	API       APIConfig       `yaml:"api"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// DatabaseConfig holds connection settings for the backing store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite (default) or mysql
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Database string `yaml:"database"`
}

// SchedulerConfig controls the periodic sweep loops.
type SchedulerConfig struct {
	SweepInterval   time.Duration `yaml:"sweep_interval"`   // due-deliverable sweep
	PatternInterval time.Duration `yaml:"pattern_interval"` // pattern/quality sweep
	Workers         int           `yaml:"workers"`          // concurrent pipeline runs
	PageSize        int           `yaml:"page_size"`        // due deliverables per page
	ManualCooldown  time.Duration `yaml:"manual_cooldown"`  // manual trigger cooldown
	QuietStart      string        `yaml:"quiet_start"`      // default quiet hours, "HH:MM"
	QuietEnd        string        `yaml:"quiet_end"`
}

// PipelineConfig holds external-call settings for pipeline steps.
type PipelineConfig struct {
	DraftCommand string        `yaml:"draft_command"` // subprocess invoked for synthesis
	CallTimeout  time.Duration `yaml:"call_timeout"`  // per external call
	// MaxRetries is the number of external-call retries. A pointer so an
	// explicit 0 (no retries) is distinct from unset (default 2).
	MaxRetries *int `yaml:"max_retries"`
}

// NotifyConfig selects and configures the notification channel.
type NotifyConfig struct {
	Platform  string `yaml:"platform"` // "slack", "discord", or "" (log only)
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// SourceConfig maps a source platform to the command that fetches its content.
type SourceConfig struct {
	Platform     string        `yaml:"platform"`
	FetchCommand string        `yaml:"fetch_command"`
	RatePerMin   int           `yaml:"rate_per_min"` // per-owner API budget
	Timeout      time.Duration `yaml:"timeout"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "inkwell.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Database == "" {
		c.Database.Database = "inkwell"
	}
	if c.Scheduler.SweepInterval == 0 {
		c.Scheduler.SweepInterval = 5 * time.Minute
	}
	if c.Scheduler.PatternInterval == 0 {
		c.Scheduler.PatternInterval = time.Hour
	}
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = 4
	}
	if c.Scheduler.PageSize == 0 {
		c.Scheduler.PageSize = 50
	}
	if c.Scheduler.ManualCooldown == 0 {
		c.Scheduler.ManualCooldown = 5 * time.Minute
	}
	if c.Pipeline.CallTimeout == 0 {
		c.Pipeline.CallTimeout = 60 * time.Second
	}
	if c.Pipeline.MaxRetries == nil {
		retries := 2
		c.Pipeline.MaxRetries = &retries
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	for i := range c.Sources {
		if c.Sources[i].RatePerMin == 0 {
			c.Sources[i].RatePerMin = 30
		}
		if c.Sources[i].Timeout == 0 {
			c.Sources[i].Timeout = 30 * time.Second
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	switch c.Notify.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("notify.platform %q must be slack, discord, or empty", c.Notify.Platform))
	}
	if c.Notify.Platform != "" && c.Notify.BotToken == "" {
		errs = append(errs, "notify.bot_token is required when notify.platform is set")
	}
	if c.Notify.Platform != "" && c.Notify.ChannelID == "" {
		errs = append(errs, "notify.channel_id is required when notify.platform is set")
	}
	for i, s := range c.Sources {
		if s.Platform == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].platform is required", i))
		}
		if s.FetchCommand == "" {
			errs = append(errs, fmt.Sprintf("sources[%d].fetch_command is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Source returns the source config for a platform, or nil if not configured.
func (c *Config) Source(platform string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Platform == platform {
			return &c.Sources[i]
		}
	}
	return nil
}
