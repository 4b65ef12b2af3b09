package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/drover-dev/drover/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Drover configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/drover/config.yaml
Project-specific overrides can be placed in .drover.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("orchestrator.max_concurrency: %d\n", cfg.Orchestrator.MaxConcurrency)
	fmt.Printf("orchestrator.task_timeout: %s\n", cfg.Orchestrator.TaskTimeout)
	fmt.Printf("orchestrator.retry_on_failure: %t\n", cfg.Orchestrator.RetryOnFailure)
	fmt.Printf("orchestrator.max_retries: %d\n", cfg.Orchestrator.MaxRetries)
	fmt.Printf("orchestrator.retry_delay: %s\n", cfg.Orchestrator.RetryDelay)
	fmt.Printf("orchestrator.stop_on_first_error: %t\n", cfg.Orchestrator.StopOnFirstError)
	fmt.Printf("history.path: %s\n", cfg.History.Path)
	fmt.Printf("debug.log_file: %s\n", cfg.Debug.LogFile)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "orchestrator.max_concurrency":
		return strconv.Itoa(cfg.Orchestrator.MaxConcurrency), nil
	case "orchestrator.task_timeout":
		return cfg.Orchestrator.TaskTimeout.String(), nil
	case "orchestrator.retry_on_failure":
		return strconv.FormatBool(cfg.Orchestrator.RetryOnFailure), nil
	case "orchestrator.max_retries":
		return strconv.Itoa(cfg.Orchestrator.MaxRetries), nil
	case "orchestrator.retry_delay":
		return cfg.Orchestrator.RetryDelay.String(), nil
	case "orchestrator.stop_on_first_error":
		return strconv.FormatBool(cfg.Orchestrator.StopOnFirstError), nil
	case "history.path":
		return cfg.History.Path, nil
	case "debug.log_file":
		return cfg.Debug.LogFile, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "orchestrator.max_concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrency: %w", err)
		}
		cfg.Orchestrator.MaxConcurrency = n
	case "orchestrator.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_timeout: %w", err)
		}
		cfg.Orchestrator.TaskTimeout = d
	case "orchestrator.retry_on_failure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for retry_on_failure: %w", err)
		}
		cfg.Orchestrator.RetryOnFailure = b
	case "orchestrator.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_retries: %w", err)
		}
		cfg.Orchestrator.MaxRetries = n
	case "orchestrator.retry_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for retry_delay: %w", err)
		}
		cfg.Orchestrator.RetryDelay = d
	case "orchestrator.stop_on_first_error":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for stop_on_first_error: %w", err)
		}
		cfg.Orchestrator.StopOnFirstError = b
	case "history.path":
		cfg.History.Path = value
	case "debug.log_file":
		cfg.Debug.LogFile = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
