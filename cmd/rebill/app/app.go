// Package app wires configuration, logging and commands for the rebill CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// App holds the CLI's configuration and shared dependencies.
type App struct {
	version string
	commit  string

	config *Config
	logger *slog.Logger
	out    io.Writer
}

// Option customizes an App.
type Option func(*App)

// WithOutput redirects command output, which defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App with configuration loaded from the environment and an
// optional config file.
func New(version, commit string, opts ...Option) (*App, error) {
	config, err := LoadConfig("")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{
		version: version,
		commit:  commit,
		config:  config,
		out:     os.Stdout,
	}
	a.logger = NewLogger(config.LogLevel, os.Stderr)

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() *Config { return a.config }

// ContextWithSignals returns a context cancelled on SIGINT or SIGTERM.
func ContextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
