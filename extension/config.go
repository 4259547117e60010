package extension

// Config holds the rebill extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.rebill" or "rebill" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Workers bounds how many subscriptions are reconciled at once
	// (default: 8).
	Workers int `json:"workers" mapstructure:"workers" yaml:"workers"`

	// Collision selects how items sharing a range are resolved: "merge",
	// "first-wins" or "last-wins" (default: "merge").
	Collision string `json:"collision" mapstructure:"collision" yaml:"collision"`

	// EnableMetrics registers the Prometheus metrics plugin.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// Store selects the history backend when no store was set with WithStore.
	Store StoreConfig `json:"store" mapstructure:"store" yaml:"store"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// StoreConfig names a store backend and how to reach it.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite", "postgres" or "mongo"
	// (default: "memory").
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the connection string or file path for the driver.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// Database is the MongoDB database name (default: "rebill").
	Database string `json:"database" mapstructure:"database" yaml:"database"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   8,
		Collision: "merge",
		Store: StoreConfig{
			Driver:   "memory",
			Database: "rebill",
		},
	}
}
