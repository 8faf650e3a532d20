// Package config handles configuration loading and management for Compass.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/viper"
)

// Config holds all configuration for Compass.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Costs      CostsConfig      `mapstructure:"costs"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model overrides the default classification model.
	Model string `mapstructure:"model"`
	// UseBedrock routes API calls through AWS Bedrock instead of the
	// Anthropic API directly.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// ApprovalConfig holds approval gate settings.
type ApprovalConfig struct {
	// Policy is one of "auto", "interactive", or "suspend".
	Policy string `mapstructure:"policy"`
}

// ClassifierConfig holds classification tuning.
type ClassifierConfig struct {
	// FastPathThreshold is the keyword confidence above which the
	// generative tier is skipped.
	FastPathThreshold float64 `mapstructure:"fast_path_threshold"`
	// SlowPathTimeout bounds a single generative classification call.
	SlowPathTimeout time.Duration `mapstructure:"slow_path_timeout"`
}

// CostsConfig holds cost estimation overrides.
type CostsConfig struct {
	// BaseCosts overrides per-capability base estimates, keyed by
	// capability name.
	BaseCosts map[string]float64 `mapstructure:"base_costs"`
	// HighStakes lists capability names that require approval before
	// execution. An empty list keeps the built-in set.
	HighStakes []string `mapstructure:"high_stakes"`
}

// StorageConfig holds workflow persistence settings.
type StorageConfig struct {
	// Path overrides the database location. Empty selects the scope default.
	Path string `mapstructure:"path"`
	// Scope is "global" (per-user database) or "project" (.compass/state.db).
	Scope string `mapstructure:"scope"`
}

// LoggingConfig holds debug logging settings.
type LoggingConfig struct {
	Debug bool   `mapstructure:"debug"`
	Path  string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, COMPASS_*)
// 2. Project config (.compass.yaml in current directory or parent)
// 3. User config (~/.config/compass/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

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
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("COMPASS")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_bedrock", "CLAUDE_CODE_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")
	v.BindEnv("approval.policy", "COMPASS_APPROVAL_POLICY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Fill anything the files left unset from the built-in defaults.
	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

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

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("approval.policy", cfg.Approval.Policy)
	v.Set("classifier.fast_path_threshold", cfg.Classifier.FastPathThreshold)
	v.Set("classifier.slow_path_timeout", cfg.Classifier.SlowPathTimeout.String())
	v.Set("storage.scope", cfg.Storage.Scope)
	v.Set("logging.debug", cfg.Logging.Debug)

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

// getUserConfigDir returns the XDG config directory for Compass.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "compass")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "compass")
	}
	return filepath.Join(home, ".config", "compass")
}

// findProjectConfig searches for .compass.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".compass.yaml")
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
		Approval: ApprovalConfig{
			Policy: "auto",
		},
		Classifier: ClassifierConfig{
			FastPathThreshold: 0.8,
			SlowPathTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Scope: "global",
		},
	}
}
