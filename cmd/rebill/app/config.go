package app

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/xraph/rebill/extension"
)

// Config holds the CLI configuration. Values come from, in order of
// precedence, command-line flags, REBILL_* environment variables, the
// config file (./.rebill.yaml or ~/.rebill.yaml) and defaults.
type Config struct {
	ConfigFile string

	LogLevel  string
	Format    string
	Collision string
	Workers   int

	Store extension.StoreConfig
}

// LoadConfig reads configuration from the environment and a config file.
// An empty path searches the default locations; a missing default file is
// not an error, a missing explicit one is.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("rebill")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults := extension.DefaultConfig()
	v.SetDefault("log_level", "info")
	v.SetDefault("format", "table")
	v.SetDefault("collision", defaults.Collision)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("store.driver", defaults.Store.Driver)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.database", defaults.Store.Database)

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigType("yaml")
		v.SetConfigName(".rebill")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Config{
		ConfigFile: v.ConfigFileUsed(),
		LogLevel:   v.GetString("log_level"),
		Format:     v.GetString("format"),
		Collision:  v.GetString("collision"),
		Workers:    v.GetInt("workers"),
		Store: extension.StoreConfig{
			Driver:   v.GetString("store.driver"),
			DSN:      v.GetString("store.dsn"),
			Database: v.GetString("store.database"),
		},
	}, nil
}
