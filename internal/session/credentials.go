// Package session holds the client's credential: the bearer token read by
// every outgoing request and written by login, signup and logout.
//
// The token lives in memory for non-blocking reads and is mirrored to a
// durable Store so it survives restarts. Writes reach the Store first; the
// in-memory value only changes after the Store accepted it, so a read never
// observes a value that was not persisted.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/ieraasyl/DispenserClient/pkg/cache"
	"github.com/rs/zerolog/log"
)

// Store is the durable key/value backend behind the cache.
// Every database backend satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CredentialCache is the single holder of the current session token.
// Construct one per process and hand it to the HTTP client and auth service.
type CredentialCache struct {
	writeMu sync.Mutex // serializes persist+publish so the last Set wins in both places

	mu    sync.RWMutex
	ready bool
	store Store
	key   string
	token string
}

// New returns an uninitialized cache. Call Initialize before use.
func New() *CredentialCache {
	return &CredentialCache{}
}

// Initialize loads the persisted token for namespace. Only the first call
// has an effect; later calls return nil without touching the store.
//
// Example:
//
//	creds := session.New()
//	if err := creds.Initialize(ctx, store, cfg.State.Namespace); err != nil {
//	    return err
//	}
func (c *CredentialCache) Initialize(ctx context.Context, store Store, namespace string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	if ready {
		return nil
	}

	key := cache.TokenKey(namespace)
	token, ok, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load session token: %w", err)
	}
	if !ok {
		token = ""
	}

	c.mu.Lock()
	c.store = store
	c.key = key
	c.token = token
	c.ready = true
	c.mu.Unlock()

	log.Debug().
		Str("namespace", namespace).
		Bool("has_token", token != "").
		Msg("Credential cache initialized")

	return nil
}

// Get returns the in-memory token. It never performs I/O. An empty string
// means no session.
func (c *CredentialCache) Get() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready {
		return "", apperrors.ErrUninitialized
	}
	return c.token, nil
}

// Set persists token and then publishes it in memory. A blank token clears
// the session, same as Clear.
func (c *CredentialCache) Set(ctx context.Context, token string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	ready, store, key := c.ready, c.store, c.key
	c.mu.RUnlock()
	if !ready {
		return apperrors.ErrUninitialized
	}

	token = strings.TrimSpace(token)
	var err error
	if token == "" {
		err = store.Delete(ctx, key)
	} else {
		err = store.Set(ctx, key, token)
	}
	if err != nil {
		log.Error().Err(err).Bool("has_token", token != "").Msg("Failed to persist session token")
		return fmt.Errorf("failed to persist session token: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return nil
}

// Clear removes the session. Clearing an empty session is not an error.
func (c *CredentialCache) Clear(ctx context.Context) error {
	return c.Set(ctx, "")
}
