package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/rebill/store"
	"github.com/xraph/rebill/store/memory"
	"github.com/xraph/rebill/store/mongo"
	"github.com/xraph/rebill/store/postgres"
	"github.com/xraph/rebill/store/sqlite"
)

// Store driver names accepted by OpenStore.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// OpenStore constructs the store backend named by cfg.Driver. An empty
// driver selects the memory store.
func OpenStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		if cfg.DSN == "" {
			return nil, errors.New("rebill: sqlite store needs a dsn")
		}
		s, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("rebill: postgres store needs a dsn")
		}
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo:
		if cfg.DSN == "" {
			return nil, errors.New("rebill: mongo store needs a dsn")
		}
		db := cfg.Database
		if db == "" {
			db = DefaultConfig().Store.Database
		}
		s, err := mongo.Open(cfg.DSN, db)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("rebill: unknown store driver %q", cfg.Driver)
	}
}
