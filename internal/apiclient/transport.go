package apiclient

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Endpoints that must never carry a bearer token.
const (
	PathSignUp = "/api/accounts/signup"
	PathLogin  = "/api/accounts/login"
)

var authExemptPaths = []string{PathSignUp, PathLogin}

// IsAuthExempt reports whether path is signup or login. A base URL prefix
// in front of the path is allowed.
func IsAuthExempt(path string) bool {
	path = strings.TrimRight(path, "/")
	for _, exempt := range authExemptPaths {
		if strings.HasSuffix(path, exempt) {
			return true
		}
	}
	return false
}

// authTransport attaches the bearer token to protected endpoints.
type authTransport struct {
	tokens TokenSource
	next   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if IsAuthExempt(req.URL.Path) {
		// A stale token must not leak into a fresh login attempt.
		req.Header.Del("Authorization")
		return t.next.RoundTrip(req)
	}

	token, err := t.tokens.Get()
	if err != nil {
		closeBody(req)
		return nil, err
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}

	return t.next.RoundTrip(req)
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

// loggingTransport tags each request with an X-Request-ID and logs the
// exchange at debug level, failures at warn.
type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		log.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("duration_ms", duration).
			Msg("Request failed")
		return nil, err
	}

	event := log.Debug()
	if resp.StatusCode >= 500 {
		event = log.Warn()
	}
	event.
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Bool("has_token", req.Header.Get("Authorization") != "").
		Dur("duration_ms", duration).
		Msg("Request completed")

	return resp, nil
}
