package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)

	t.Run("absent key", func(t *testing.T) {
		value, ok, err := store.Get(ctx, "ns:session:token")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, value)
	})

	t.Run("set then overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "ns:session:token", "first"))
		require.NoError(t, store.Set(ctx, "ns:session:token", "second"))

		value, ok, err := store.Get(ctx, "ns:session:token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", value)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "ns:dispenser:active", "d-1"))
		require.NoError(t, store.Delete(ctx, "ns:dispenser:active"))
		require.NoError(t, store.Delete(ctx, "ns:dispenser:active"))

		_, ok, err := store.Get(ctx, "ns:dispenser:active")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())

	t.Run("values survive reopen", func(t *testing.T) {
		reopened, err := NewSQLiteStore(ctx, path)
		require.NoError(t, err)
		defer reopened.Close()

		value, ok, err := reopened.Get(ctx, "ns:session:token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", value)
	})
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: "postgres"}
	lite := &SQLStore{driver: "sqlite"}
	query := "INSERT INTO t (a, b) VALUES (?, ?)"

	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite backend", func(t *testing.T) {
		cfg := &config.Config{State: config.StateConfig{
			Backend: config.BackendSQLite,
			Path:    filepath.Join(t.TempDir(), "state.db"),
		}}
		store, err := Open(ctx, cfg)
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &SQLStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{State: config.StateConfig{Backend: "etcd"}}
		store, err := Open(ctx, cfg)
		require.Error(t, err)
		assert.Nil(t, store)
		assert.Contains(t, err.Error(), "etcd")
	})
}
