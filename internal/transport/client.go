// Package transport issues single request/response calls to the support
// assistant service. It performs no retries and no payload parsing: the
// raw body text and status code are handed to the classifier untouched.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// FailureKind tags a transport-level failure so callers can react to
// connectivity problems without inspecting error strings.
type FailureKind int

const (
	// KindOther covers failures with no recognized connectivity signature.
	KindOther FailureKind = iota
	// KindTimeout covers deadline and client-timeout failures.
	KindTimeout
	// KindConnectionRefused covers refused or reset connections.
	KindConnectionRefused
	// KindDNSFailure covers name resolution failures.
	KindDNSFailure
)

// String returns a short label for logging.
func (k FailureKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection_refused"
	case KindDNSFailure:
		return "dns_failure"
	default:
		return "other"
	}
}

// Connectivity reports whether the failure indicates the service itself
// is unreachable, as opposed to a local or unclassified fault.
func (k FailureKind) Connectivity() bool {
	return k == KindTimeout || k == KindConnectionRefused || k == KindDNSFailure
}

// Error is a tagged transport failure.
type Error struct {
	Kind FailureKind
	URL  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response is the raw outcome of a completed HTTP exchange. Body holds
// the full response text, read exactly once.
type Response struct {
	Status int
	Body   string
}

// Client is the single-call request/response contract the session
// controller depends on. Implementations must not retry.
type Client interface {
	Send(ctx context.Context, method, path string, body any) (*Response, error)
}

// HTTPClient implements Client against the assistant service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a transport client for the given base URL. A
// zero timeout falls back to 30 seconds so a hung request cannot leave
// the controller pending forever.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL returns the configured service base URL.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Send performs one HTTP exchange. A nil body sends no payload; any
// other value is JSON-encoded. The response body is drained exactly
// once and returned as text so downstream classification can attempt a
// JSON parse without touching the stream again.
func (c *HTTPClient) Send(ctx context.Context, method, path string, body any) (*Response, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyFailure(err)
		c.logger.Debug("transport call failed", "url", url, "kind", kind.String(), "error", err)
		return nil, &Error{Kind: kind, URL: url, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "url", url, "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := classifyFailure(err)
		return nil, &Error{Kind: kind, URL: url, Err: fmt.Errorf("read response body: %w", err)}
	}

	return &Response{Status: resp.StatusCode, Body: string(raw)}, nil
}

// classifyFailure maps a low-level network error to a FailureKind.
// Tagging here replaces substring matching on error text downstream.
func classifyFailure(err error) FailureKind {
	if err == nil {
		return KindOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnectionRefused
	}

	return KindOther
}
