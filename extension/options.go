package extension

import (
	"github.com/xraph/rebill"
	"github.com/xraph/rebill/plugin"
	"github.com/xraph/rebill/store"
)

// Option configures the rebill Forge extension.
type Option func(*Extension)

// WithStore sets the store for the rebill engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a rebill.Option through to the underlying engine.
func WithEngineOption(opt rebill.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a rebill plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, rebill.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithWorkers sets how many subscriptions are reconciled at once.
func WithWorkers(n int) Option {
	return func(e *Extension) { e.config.Workers = n }
}

// WithCollision sets the collision policy by name.
func WithCollision(name string) Option {
	return func(e *Extension) { e.config.Collision = name }
}

// WithMetrics registers the Prometheus metrics plugin.
func WithMetrics() Option {
	return func(e *Extension) { e.config.EnableMetrics = true }
}

// WithStoreDriver selects a store backend by driver name and DSN.
func WithStoreDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.Store.Driver = driver
		e.config.Store.DSN = dsn
	}
}
