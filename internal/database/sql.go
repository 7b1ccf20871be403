// Package database provides the durable key/value backends that hold the
// client's persisted state: the session token and the active dispenser.
//
// Three backends are available:
//   - SQLite (default): a single file scoped to the installation
//   - PostgreSQL: for hubs that keep state for several installations
//   - Redis: same use case, with JSON-encoded values
//
// Every backend treats an absent key as "not set". A Set is durable once it
// returns without error.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// KVStore is implemented by every state backend.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS client_state (
	state_key   TEXT PRIMARY KEY,
	state_value TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLStore persists state in a single SQL table. The same statements run on
// SQLite and PostgreSQL; only the placeholder style differs.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLiteStore opens (or creates) the SQLite state file at path.
// The parent directory is created when missing.
//
// Example:
//
//	store, err := database.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "state.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY on quick successive writes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLStore{db: db, driver: "sqlite"}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("Opened SQLite state store")
	return store, nil
}

// NewPostgresStore connects to PostgreSQL for hubs that share one state
// database. The first ping is retried like NewRedisDB's, since the
// database may still be starting.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err = utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
		defer pingCancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	store := &SQLStore{db: db, driver: "postgres"}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Msg("Connected to PostgreSQL state store")
	return store, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Get returns the value stored under key. The boolean is false when the key
// has never been set or was deleted.
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT state_value FROM client_state WHERE state_key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query := s.rebind(`
		INSERT INTO client_state (state_key, state_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (state_key) DO UPDATE SET
			state_value = excluded.state_value,
			updated_at = excluded.updated_at`)

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM client_state WHERE state_key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open selects and connects the backend named in cfg.State.
func Open(ctx context.Context, cfg *config.Config) (KVStore, error) {
	switch cfg.State.Backend {
	case config.BackendSQLite:
		store, err := NewSQLiteStore(ctx, cfg.State.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		store, err := NewPostgresStore(ctx, cfg.State.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		store, err := NewRedisDB(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
