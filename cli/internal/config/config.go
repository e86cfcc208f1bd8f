// Package config loads the CLI's own settings: which environment prefixes
// name the database targets and where exports land. Database credentials
// themselves stay in the environment.
package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var AppFs = afero.NewOsFs()

// Config holds the CLI configuration
type Config struct {
	// EnvPrefix is the environment prefix naming the default target,
	// e.g. REDSHIFT for REDSHIFT_HOST and friends.
	EnvPrefix string
	// SourcePrefix and TargetPrefix name the two targets of a transfer.
	SourcePrefix string
	TargetPrefix string
	// ExportDir is where fetch --output writes CSV files.
	ExportDir string
	// LogStatements echoes each statement before execution.
	LogStatements bool
}

// LoadConfig loads configuration from config files and the environment
func LoadConfig() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName(".dataferry")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(home)
	viper.AddConfigPath(filepath.Join(home, ".config", "dataferry"))

	viper.SetEnvPrefix("DATAFERRY")
	viper.AutomaticEnv()

	viper.SetDefault("env_prefix", "DB")
	viper.SetDefault("source_prefix", "SOURCE")
	viper.SetDefault("target_prefix", "TARGET")
	viper.SetDefault("export_dir", "./exports")
	viper.SetDefault("log_statements", false)

	// Missing config file is fine; defaults and env cover it.
	_ = viper.ReadInConfig()

	// Load .env file if it exists
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	// Load .env.local if it exists (higher priority)
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	cfg := &Config{
		EnvPrefix:     viper.GetString("env_prefix"),
		SourcePrefix:  viper.GetString("source_prefix"),
		TargetPrefix:  viper.GetString("target_prefix"),
		ExportDir:     viper.GetString("export_dir"),
		LogStatements: viper.GetBool("log_statements"),
	}

	return cfg, nil
}

// SaveConfig saves configuration to the user config file
func SaveConfig(cfg *Config) error {
	viper.Set("env_prefix", cfg.EnvPrefix)
	viper.Set("source_prefix", cfg.SourcePrefix)
	viper.Set("target_prefix", cfg.TargetPrefix)
	viper.Set("export_dir", cfg.ExportDir)
	viper.Set("log_statements", cfg.LogStatements)

	home, err := homedir.Dir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(home, ".config", "dataferry")
	if err := AppFs.MkdirAll(configPath, 0755); err != nil {
		return err
	}

	configFile := filepath.Join(configPath, ".dataferry.yaml")
	return viper.WriteConfigAs(configFile)
}
