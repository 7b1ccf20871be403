// Package apiclient executes requests against the dispenser backend.
//
// Requests pass through a chain of round trippers:
//
//	authTransport → loggingTransport → metricsTransport → http.Transport
//
// The auth transport applies the interceptor policy: signup and login never
// carry an Authorization header, every other endpoint carries
// "Bearer <token>" when the credential cache holds a non-blank token.
// Responses are classified into the apperrors taxonomy by Do.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=UTF-8"
	userAgent       = "DispenserClient/1.0"

	// maxResponseBytes bounds how much of a response body is buffered.
	maxResponseBytes = 4 << 20
)

// TokenSource supplies the current bearer token. session.CredentialCache
// implements it.
type TokenSource interface {
	Get() (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// OnUnauthorized runs after a protected endpoint answered 401.
	// The client itself never clears the session.
	OnUnauthorized func()

	// Transport replaces the network transport. Tests use it to inject faults.
	Transport http.RoundTripper
}

// OptionsFromConfig maps the client section of the configuration.
func OptionsFromConfig(cfg *config.ClientConfig) Options {
	return Options{
		BaseURL:        cfg.BaseURL,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}
}

// Client talks JSON to the backend.
type Client struct {
	baseURL        string
	http           *http.Client
	onUnauthorized func()
}

// Response is a completed exchange whose status has not been classified yet.
type Response struct {
	StatusCode int
	Body       []byte
}

// Success reports a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out interface{}) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return &apperrors.UnknownError{Err: fmt.Errorf("invalid response body: %w", err)}
	}
	return nil
}

// New builds a client for opts.BaseURL that reads tokens from tokens.
//
// Example:
//
//	client, err := apiclient.New(creds, apiclient.Options{
//	    BaseURL:        "http://localhost:8080",
//	    ConnectTimeout: 15 * time.Second,
//	    ReadTimeout:    20 * time.Second,
//	    WriteTimeout:   20 * time.Second,
//	    OnUnauthorized: func() { _ = creds.Clear(context.Background()) },
//	})
func New(tokens TokenSource, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	connectTimeout := capTimeout(opts.ConnectTimeout, config.MaxConnectTimeout)
	readTimeout := capTimeout(opts.ReadTimeout, config.MaxReadTimeout)
	writeTimeout := capTimeout(opts.WriteTimeout, config.MaxWriteTimeout)

	base := opts.Transport
	if base == nil {
		base = newNetTransport(connectTimeout, readTimeout, writeTimeout)
	}

	transport := &authTransport{
		tokens: tokens,
		next:   &loggingTransport{next: &metricsTransport{next: base}},
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: transport,
			// Overall ceiling; the per-phase limits live in the transport.
			Timeout: connectTimeout + writeTimeout + readTimeout,
		},
		onUnauthorized: opts.OnUnauthorized,
	}, nil
}

func capTimeout(d, ceiling time.Duration) time.Duration {
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

// newNetTransport applies the connect, write and read limits. The read
// limit bounds the wait for response headers and every stall while the
// body streams in.
func newNetTransport(connectTimeout, readTimeout, writeTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}, nil
		},
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       readTimeout,
	}
}

// deadlineConn arms a deadline before every read and write. A write also
// pushes out the deadline of a read already pending on a reused
// connection, so a new request always gets the full read limit.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	now := time.Now()
	if err := c.Conn.SetWriteDeadline(now.Add(c.writeTimeout)); err != nil {
		return 0, err
	}
	if err := c.Conn.SetReadDeadline(now.Add(c.writeTimeout + c.readTimeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// Send performs the request and buffers the response. Only transport
// failures are returned as errors; every HTTP status comes back in Response.
func (c *Client) Send(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &apperrors.UnknownError{Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &apperrors.UnknownError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !IsAuthExempt(path) && c.onUnauthorized != nil {
		log.Warn().Str("method", method).Str("path", path).Msg("Backend rejected session token")
		c.onUnauthorized()
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Do performs the request, classifies the status and decodes a 2xx body
// into out (which may be nil).
//
// Classification:
//   - 2xx: success
//   - 4xx: *apperrors.ValidationError with the status, body and server message
//   - anything else: *apperrors.UnknownError
//
// Transport failures and timeouts surface as *apperrors.NetworkError.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.Send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := ClassifyStatus(method, path, resp); err != nil {
		return err
	}
	return resp.Decode(out)
}

// ClassifyStatus maps a non-2xx response to an error. It returns nil for 2xx.
func ClassifyStatus(method, path string, resp *Response) error {
	switch {
	case resp.Success():
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &apperrors.ValidationError{
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
			Message:    ServerMessage(resp.Body),
		}
	default:
		msg := ServerMessage(resp.Body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &apperrors.UnknownError{
			Err: fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, msg),
		}
	}
}

// ServerMessage extracts the "message" (or "error") field of a JSON error
// body. Returns "" when the body is not such an object.
func ServerMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrUninitialized):
		return apperrors.ErrUninitialized
	case errors.Is(err, context.Canceled):
		return context.Canceled
	default:
		return &apperrors.NetworkError{Err: err}
	}
}
