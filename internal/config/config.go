// Package config loads FarmWatch client configuration from file and
// environment and builds the logger from it.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved client configuration.
type Config struct {
	ServerURL string
	Timeout   time.Duration
	DataDir   string

	AlertLimit         int
	EventLimit         int
	MinRefreshInterval time.Duration
}

// Load reads configuration from the given file, or searches the usual
// locations when path is empty. Environment variables with the FW_ prefix
// override file values (FW_SERVER_URL=...). A missing file is fine; defaults
// apply.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.url", "http://localhost:8000")
	v.SetDefault("server.timeout", "15s")
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("dashboard.alert_limit", 20)
	v.SetDefault("dashboard.event_limit", 50)
	v.SetDefault("dashboard.min_refresh_interval", "2s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("farmwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/farmwatch")
	}

	v.SetEnvPrefix("FW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file is fine -- defaults apply.
	}

	return v, nil
}

// FromViper resolves the typed configuration.
func FromViper(v *viper.Viper) Config {
	return Config{
		ServerURL:          v.GetString("server.url"),
		Timeout:            v.GetDuration("server.timeout"),
		DataDir:            v.GetString("server.data_dir"),
		AlertLimit:         v.GetInt("dashboard.alert_limit"),
		EventLimit:         v.GetInt("dashboard.event_limit"),
		MinRefreshInterval: v.GetDuration("dashboard.min_refresh_interval"),
	}
}
