// Package config handles configuration loading and management for Skout.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Skout.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Signals   SignalsConfig   `mapstructure:"signals"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseAWSBedrock routes API calls through AWS Bedrock.
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// AnalysisConfig holds default analysis settings.
type AnalysisConfig struct {
	// MaxConcurrency bounds how many agents run at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// TaskTimeout caps each agent's execution time.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// DeepAnalysis widens the file sample for security analysis.
	DeepAnalysis bool `mapstructure:"deep_analysis"`
	// WorkDir is where repositories are cloned.
	WorkDir string `mapstructure:"work_dir"`
}

// StorageConfig holds run history settings.
type StorageConfig struct {
	// DBPath is the SQLite database file for run history.
	DBPath string `mapstructure:"db_path"`
}

// SignalsConfig holds out-of-band signal settings.
type SignalsConfig struct {
	// Dir is watched for stop files during a run.
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.skout.yaml in current directory or parent)
// 3. User config (~/.config/skout/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
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

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

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
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("analysis.max_concurrency", cfg.Analysis.MaxConcurrency)
	v.Set("analysis.task_timeout", cfg.Analysis.TaskTimeout.String())
	v.Set("analysis.deep_analysis", cfg.Analysis.DeepAnalysis)
	v.Set("analysis.work_dir", cfg.Analysis.WorkDir)
	v.Set("storage.db_path", cfg.Storage.DBPath)
	v.Set("signals.dir", cfg.Signals.Dir)

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
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("analysis.max_concurrency", 4)
	v.SetDefault("analysis.task_timeout", "10m")
	v.SetDefault("analysis.deep_analysis", false)
	v.SetDefault("analysis.work_dir", defaultWorkDir())

	v.SetDefault("storage.db_path", filepath.Join(defaultDataDir(), "runs.db"))
	v.SetDefault("signals.dir", filepath.Join(defaultWorkDir(), "signals"))
}

// getUserConfigDir returns the XDG config directory for Skout.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "skout")
	}

	// Fall back to ~/.config/skout
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "skout")
	}
	return filepath.Join(home, ".config", "skout")
}

// defaultDataDir returns the directory for persistent data like run history.
func defaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "skout")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".skout")
	}
	return filepath.Join(home, ".local", "share", "skout")
}

// defaultWorkDir returns the scratch directory for clones and signals.
func defaultWorkDir() string {
	return filepath.Join(os.TempDir(), "skout")
}

// findProjectConfig searches for .skout.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".skout.yaml")
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
		Anthropic: AnthropicConfig{},
		Analysis: AnalysisConfig{
			MaxConcurrency: 4,
			TaskTimeout:    10 * time.Minute,
			WorkDir:        defaultWorkDir(),
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(defaultDataDir(), "runs.db"),
		},
		Signals: SignalsConfig{
			Dir: filepath.Join(defaultWorkDir(), "signals"),
		},
	}
}
