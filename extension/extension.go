// Package extension provides the Forge extension adapter for rebill.
//
// It implements the forge.Extension interface to integrate the rebill
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.rebill" or "rebill" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/observability"
	"github.com/xraph/rebill/reconcile"
	"github.com/xraph/rebill/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "rebill"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Billing-period reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the rebill engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *rebill.Engine
	store      store.Store
	engineOpts []rebill.Option
}

// New creates a new rebill Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *rebill.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Open the configured store if none was provided programmatically.
	if e.store == nil {
		s, err := OpenStore(context.Background(), e.config.Store)
		if err != nil {
			return err
		}
		e.store = s
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	e.engine = rebill.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*rebill.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("rebill: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("rebill: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs rebill.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]rebill.Option, error) {
	opts := make([]rebill.Option, 0, len(e.engineOpts)+3)

	if e.config.Workers > 0 {
		opts = append(opts, rebill.WithWorkers(e.config.Workers))
	}

	if e.config.Collision != "" {
		c, ok := reconcile.ParseCollision(e.config.Collision)
		if !ok {
			return nil, fmt.Errorf("rebill: unknown collision policy %q", e.config.Collision)
		}
		opts = append(opts, rebill.WithCollision(c))
	}

	if e.config.EnableMetrics {
		factory := observability.NewPrometheusFactory(nil)
		opts = append(opts, rebill.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("rebill: configuration is required but not found in config files; " +
				"ensure 'extensions.rebill' or 'rebill' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("rebill: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("workers", e.config.Workers),
		forge.F("collision", e.config.Collision),
		forge.F("enable_metrics", e.config.EnableMetrics),
		forge.F("store_driver", e.config.Store.Driver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.rebill" first (namespaced pattern).
	if cm.IsSet("extensions.rebill") {
		if err := cm.Bind("extensions.rebill", &cfg); err == nil {
			e.Logger().Debug("rebill: loaded config from file",
				forge.F("key", "extensions.rebill"),
			)
			return cfg, true
		}
		e.Logger().Warn("rebill: failed to bind extensions.rebill config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "rebill" key.
	if cm.IsSet("rebill") {
		if err := cm.Bind("rebill", &cfg); err == nil {
			e.Logger().Debug("rebill: loaded config from file",
				forge.F("key", "rebill"),
			)
			return cfg, true
		}
		e.Logger().Warn("rebill: failed to bind rebill config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Collision == "" {
		cfg.Collision = defaults.Collision
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.Store.Database == "" {
		cfg.Store.Database = defaults.Store.Database
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableMetrics {
		yamlConfig.EnableMetrics = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Collision == "" && programmaticConfig.Collision != "" {
		yamlConfig.Collision = programmaticConfig.Collision
	}
	if yamlConfig.Store.Driver == "" && programmaticConfig.Store.Driver != "" {
		yamlConfig.Store = programmaticConfig.Store
	}

	// Int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.Workers == 0 && programmaticConfig.Workers != 0 {
		yamlConfig.Workers = programmaticConfig.Workers
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
