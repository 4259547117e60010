package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/store"
	"github.com/xraph/rebill/store/sqlite"
	"github.com/xraph/rebill/store/storetest"
	"github.com/xraph/rebill/types"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM rebill_migrations`).Scan(&n))
	assert.Equal(t, len(sqlite.Migrations.Migrations()), n)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rebill.db")

	s, err := sqlite.Open("file:" + path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	jan := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 2, 1))
	c := item.NewCharge(id.NewItemID(), jan, "pistol", "evergreen", types.USD(1200), types.USD(1200))
	c.SubscriptionID = id.NewSubscriptionID()
	require.NoError(t, s.AppendItems(ctx, []item.Item{c}))
	require.NoError(t, s.Close())

	s, err = sqlite.Open("file:" + path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	got, err := s.GetItem(ctx, c.ID)
	require.NoError(t, err)
	storetest.RequireItemEqual(t, c, *got)
}
