// Package config handles configuration loading and management for Drover.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/drover-dev/drover/internal/orchestrator"
)

// Config holds all configuration for Drover.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	History      HistoryConfig      `mapstructure:"history"`
	Debug        DebugConfig        `mapstructure:"debug"`
}

// OrchestratorConfig holds the scheduling and retry policy.
type OrchestratorConfig struct {
	// MaxConcurrency caps the number of tasks running at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// TaskTimeout bounds a single attempt of a task.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// RetryOnFailure re-runs failed tasks up to MaxRetries extra times.
	RetryOnFailure bool `mapstructure:"retry_on_failure"`
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the pause between attempts of the same task.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// StopOnFirstError cancels not-yet-started tasks after the first
	// permanent failure.
	StopOnFirstError bool `mapstructure:"stop_on_first_error"`
}

// HistoryConfig holds run-history persistence settings.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `mapstructure:"path"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	// LogFile receives the orchestrator's internal trace when set.
	LogFile string `mapstructure:"log_file"`
}

// Options converts the orchestrator section into an executor policy.
func (c *Config) Options() orchestrator.Options {
	return orchestrator.Options{
		MaxConcurrency:   c.Orchestrator.MaxConcurrency,
		TaskTimeout:      c.Orchestrator.TaskTimeout,
		RetryOnFailure:   c.Orchestrator.RetryOnFailure,
		MaxRetries:       c.Orchestrator.MaxRetries,
		RetryDelay:       c.Orchestrator.RetryDelay,
		StopOnFirstError: c.Orchestrator.StopOnFirstError,
	}
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (DROVER_*)
// 2. Project config (.drover.yaml in current directory or parent)
// 3. User config (~/.config/drover/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("DROVER")
	v.AutomaticEnv()
	v.BindEnv("orchestrator.max_concurrency", "DROVER_MAX_CONCURRENCY")
	v.BindEnv("orchestrator.task_timeout", "DROVER_TASK_TIMEOUT")
	v.BindEnv("history.path", "DROVER_HISTORY_PATH")
	v.BindEnv("debug.log_file", "DROVER_DEBUG_LOG")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.History.Path = expandEnv(cfg.History.Path)
	cfg.Debug.LogFile = expandEnv(cfg.Debug.LogFile)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.History.Path = expandEnv(cfg.History.Path)
	cfg.Debug.LogFile = expandEnv(cfg.Debug.LogFile)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("orchestrator.max_concurrency", cfg.Orchestrator.MaxConcurrency)
	v.Set("orchestrator.task_timeout", cfg.Orchestrator.TaskTimeout.String())
	v.Set("orchestrator.retry_on_failure", cfg.Orchestrator.RetryOnFailure)
	v.Set("orchestrator.max_retries", cfg.Orchestrator.MaxRetries)
	v.Set("orchestrator.retry_delay", cfg.Orchestrator.RetryDelay.String())
	v.Set("orchestrator.stop_on_first_error", cfg.Orchestrator.StopOnFirstError)
	v.Set("history.path", cfg.History.Path)
	v.Set("debug.log_file", cfg.Debug.LogFile)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator.max_concurrency", 5)
	v.SetDefault("orchestrator.task_timeout", "5m")
	v.SetDefault("orchestrator.retry_on_failure", false)
	v.SetDefault("orchestrator.max_retries", 3)
	v.SetDefault("orchestrator.retry_delay", "1s")
	v.SetDefault("orchestrator.stop_on_first_error", false)

	v.SetDefault("history.path", filepath.Join(getUserDataDir(), "history.db"))
	v.SetDefault("debug.log_file", "")
}

// getUserConfigDir returns the XDG config directory for Drover.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "drover")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "drover")
	}
	return filepath.Join(home, ".config", "drover")
}

// getUserDataDir returns the XDG data directory for Drover.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "drover")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "drover")
	}
	return filepath.Join(home, ".local", "share", "drover")
}

// findProjectConfig searches for .drover.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".drover.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxConcurrency:   5,
			TaskTimeout:      5 * time.Minute,
			RetryOnFailure:   false,
			MaxRetries:       3,
			RetryDelay:       time.Second,
			StopOnFirstError: false,
		},
		History: HistoryConfig{
			Path: filepath.Join(getUserDataDir(), "history.db"),
		},
	}
}
