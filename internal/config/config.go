package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the application configuration. Keys match the CLI flag
// names so flags, GEOTAGGER_* env vars and the config file all line up.
type Config struct {
	LogLevel string `mapstructure:"log-level"`

	MaxTimeDiffSec       float64 `mapstructure:"max-time-diff"`
	TimeOffsetHours      float64 `mapstructure:"time-offset"`
	OverwriteExistingGps bool    `mapstructure:"overwrite-gps"`
	ForceInterpolate     bool    `mapstructure:"force-interpolate"`
	DryRun               bool    `mapstructure:"dry-run"`

	Recursive   bool   `mapstructure:"recursive"`
	Concurrency int    `mapstructure:"concurrency"`
	ReportPath  string `mapstructure:"report"`
}

// New creates a configuration with default values. A zero max-time-diff
// selects the adaptive threshold derived from the track's sampling
// interval.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		Concurrency: 4,
	}
}

// Load resolves the configuration with the usual precedence: flags over
// environment over config file over defaults. configFile may be empty, in
// which case geotagger.yaml is searched for in the working directory and
// the user's home.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	// Every key needs a default so env-only overrides resolve during
	// Unmarshal.
	v.SetDefault("log-level", "info")
	v.SetDefault("max-time-diff", 0.0)
	v.SetDefault("time-offset", 0.0)
	v.SetDefault("overwrite-gps", false)
	v.SetDefault("force-interpolate", false)
	v.SetDefault("dry-run", false)
	v.SetDefault("recursive", false)
	v.SetDefault("concurrency", 4)
	v.SetDefault("report", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("geotagger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("GEOTAGGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// A missing default config file is fine; an explicitly named one that
	// cannot be read is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
