package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ieraasyl/DispenserClient/internal/database"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/stretchr/testify/require"
)

// NewMiniRedis starts an in-process Redis that stops with the test.
func NewMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// NewTestRedisDB connects the Redis state backend to mr.
func NewTestRedisDB(t *testing.T, mr *miniredis.Miniredis) *database.RedisDB {
	t.Helper()

	db, err := database.NewRedisDB(context.Background(), &config.RedisConfig{
		Host:     mr.Host(),
		Port:     mr.Port(),
		PoolSize: 2,
	})
	require.NoError(t, err, "connect to miniredis")
	t.Cleanup(func() { db.Close() })

	return db
}

// NewTestSQLiteStore opens a SQLite state store, by default in a per-test
// directory. Reopening the same path simulates a process restart.
func NewTestSQLiteStore(t *testing.T, path string) *database.SQLStore {
	t.Helper()

	if path == "" {
		path = filepath.Join(t.TempDir(), "state.db")
	}

	store, err := database.NewSQLiteStore(context.Background(), path)
	require.NoError(t, err, "open SQLite store")
	t.Cleanup(func() { store.Close() })

	return store
}
