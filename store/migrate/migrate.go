// Package migrate applies versioned schema migrations for the SQL stores.
package migrate

import (
	"context"
	"fmt"
	"sort"
)

// Migration is one versioned schema change. Versions sort lexically, so use
// a fixed-width timestamp such as 20240101000001.
type Migration struct {
	Name    string
	Version string
	Up      string
	Down    string
}

// Executor is the dialect-specific side of a migration run.
type Executor interface {
	// Init creates the bookkeeping table if it does not exist.
	Init(ctx context.Context) error
	// Applied returns the versions already recorded.
	Applied(ctx context.Context) (map[string]bool, error)
	// Apply runs m.Up and records m in one transaction.
	Apply(ctx context.Context, m *Migration) error
}

// Group is an ordered set of migrations for one store.
type Group struct {
	name       string
	migrations []*Migration
	versions   map[string]bool
}

// NewGroup returns an empty group.
func NewGroup(name string) *Group {
	return &Group{name: name, versions: make(map[string]bool)}
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// MustRegister adds migrations, panicking on a duplicate or missing version.
func (g *Group) MustRegister(ms ...*Migration) {
	for _, m := range ms {
		if m.Version == "" {
			panic(fmt.Sprintf("migrate: %s: migration %q has no version", g.name, m.Name))
		}
		if g.versions[m.Version] {
			panic(fmt.Sprintf("migrate: %s: duplicate version %s", g.name, m.Version))
		}
		g.versions[m.Version] = true
		g.migrations = append(g.migrations, m)
	}
	sort.Slice(g.migrations, func(i, j int) bool {
		return g.migrations[i].Version < g.migrations[j].Version
	})
}

// Migrations returns the registered migrations in version order.
func (g *Group) Migrations() []*Migration {
	out := make([]*Migration, len(g.migrations))
	copy(out, g.migrations)
	return out
}

// Migrate applies every pending migration in version order and returns the
// names of those it applied. It stops at the first failure.
func (g *Group) Migrate(ctx context.Context, exec Executor) ([]string, error) {
	if err := exec.Init(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %s: init: %w", g.name, err)
	}
	applied, err := exec.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %s: read applied: %w", g.name, err)
	}

	var ran []string
	for _, m := range g.migrations {
		if applied[m.Version] {
			continue
		}
		if err := exec.Apply(ctx, m); err != nil {
			return ran, fmt.Errorf("migrate: %s: %s (%s): %w", g.name, m.Name, m.Version, err)
		}
		ran = append(ran, m.Name)
	}
	return ran, nil
}
