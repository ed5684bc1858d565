// Package config loads the garde configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/garde/internal/core/escalation"
)

// DirName is the per-project and per-user configuration directory.
const DirName = ".garde"

// FileName is the configuration file inside DirName.
const FileName = "config.json"

// EscalationConfig holds the defaults applied to new escalation cases.
type EscalationConfig struct {
	TimeoutMinutes      [escalation.MaxLevel]int `json:"timeout_minutes"`
	MaxAttemptsPerLevel int                      `json:"max_attempts_per_level"`
	MinIntervalMinutes  int                      `json:"min_interval_minutes"`
}

// EventsConfig selects the outbound event transport.
type EventsConfig struct {
	Transport     string `json:"transport"` // log, redis or nats
	RedisAddr     string `json:"redis_addr,omitempty"`
	NATSURL       string `json:"nats_url,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// WatchConfig drives `garde escalation watch`.
type WatchConfig struct {
	Schedule    string `json:"schedule"`               // cron spec
	MetricsAddr string `json:"metrics_addr,omitempty"` // empty disables /metrics
}

// Config is the garde configuration.
type Config struct {
	DBPath           string           `json:"db_path,omitempty"` // empty uses ~/.garde/garde.db
	LogLevel         string           `json:"log_level"`
	LogFormat        string           `json:"log_format"`
	HolidaysFile     string           `json:"holidays_file,omitempty"` // empty uses the embedded table
	LoadLookbackDays int              `json:"load_lookback_days"`
	Escalation       EscalationConfig `json:"escalation"`
	Events           EventsConfig     `json:"events"`
	Watch            WatchConfig      `json:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	esc := escalation.DefaultConfig()
	return &Config{
		LogLevel:         "info",
		LogFormat:        "console",
		LoadLookbackDays: 90,
		Escalation: EscalationConfig{
			TimeoutMinutes:      esc.TimeoutMinutes,
			MaxAttemptsPerLevel: esc.MaxAttemptsPerLevel,
			MinIntervalMinutes:  esc.MinIntervalMinutes,
		},
		Events: EventsConfig{
			Transport:     "log",
			SubjectPrefix: "garde",
		},
		Watch: WatchConfig{
			Schedule: "@every 1m",
		},
	}
}

// EscalationDefaults converts the escalation section to the engine's type.
func (c *Config) EscalationDefaults() escalation.Config {
	return escalation.Config{
		TimeoutMinutes:      c.Escalation.TimeoutMinutes,
		MaxAttemptsPerLevel: c.Escalation.MaxAttemptsPerLevel,
		MinIntervalMinutes:  c.Escalation.MinIntervalMinutes,
	}
}

// Validate checks the values the engine cannot repair itself.
func (c *Config) Validate() error {
	if c.LoadLookbackDays <= 0 {
		return fmt.Errorf("load_lookback_days must be positive")
	}
	if err := c.EscalationDefaults().Validate(); err != nil {
		return fmt.Errorf("escalation: %w", err)
	}
	switch c.Events.Transport {
	case "", "log", "redis", "nats":
	default:
		return fmt.Errorf("unknown events.transport %q", c.Events.Transport)
	}
	return nil
}

// Resolve returns the config file to use. Resolution order: explicit path,
// then <dir>/.garde/config.json, then ~/.garde/config.json. It returns ""
// when none exists.
func Resolve(explicit, dir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	candidates := []string{filepath.Join(dir, DirName, FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DirName, FileName))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}
	return "", nil
}

// Load reads the resolved config over the defaults. Keys missing from the
// file keep their default value.
func Load(explicit, dir string) (*Config, error) {
	cfg := Default()
	path, err := Resolve(explicit, dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to <dir>/.garde/config.json and returns the path.
func Save(dir string, cfg *Config) (string, error) {
	gardeDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(gardeDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s dir: %w", DirName, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(gardeDir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}

	return path, nil
}
