package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ServeJSON sends body (when non-nil) as JSON to h and returns the recorded
// response. A non-empty token is sent as a bearer token.
func ServeJSON(t *testing.T, h http.Handler, method, url, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body), "encode request body")
	}

	req := httptest.NewRequest(method, url, &payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ParseJSONResponse decodes the recorded body into v.
func ParseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), "body: %s", resp.Body.String())
}

// AssertStatusCode reports the body alongside an unexpected status.
func AssertStatusCode(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.Code, "body: %s", resp.Body.String())
}

// AssertJSONContentType accepts any charset suffix.
func AssertJSONContentType(t *testing.T, resp *httptest.ResponseRecorder) {
	t.Helper()
	assert.Contains(t, resp.Header().Get("Content-Type"), "application/json")
}
