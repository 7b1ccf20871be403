package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ieraasyl/DispenserClient/internal/apiclient"
	"github.com/ieraasyl/DispenserClient/internal/session"
	"github.com/ieraasyl/DispenserClient/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a scripted backend that records every request.
type fakeBackend struct {
	mu       sync.Mutex
	requests []capturedRequest
	routes   map[string]http.HandlerFunc
}

type capturedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

func (f *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	f.routes[pattern] = h
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (f *fakeBackend) captured() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func respondJSON(status int, payload interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if payload != nil {
			_ = json.NewEncoder(w).Encode(payload)
		}
	}
}

// setupBackend wires a real client and credential cache to a fake backend.
func setupBackend(t *testing.T) (*fakeBackend, *apiclient.Client, *session.CredentialCache, session.Store) {
	t.Helper()

	backend := &fakeBackend{routes: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store := testutil.NewTestSQLiteStore(t, "")
	creds := session.New()
	require.NoError(t, creds.Initialize(context.Background(), store, "test"))

	client, err := apiclient.New(creds, apiclient.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	return backend, client, creds, store
}
