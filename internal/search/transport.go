package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Request is one composed backend search call.
type Request struct {
	BaseURL string
	Index   string
	// Authorization is the full header value, empty for unauthenticated calls.
	Authorization string
	Body          []byte
}

// URL returns {BaseURL without trailing slashes}/{Index}/_search.
func (r *Request) URL() string {
	return strings.TrimRight(r.BaseURL, "/") + "/" + r.Index + "/_search"
}

// Response is the raw backend answer.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport sends a composed request to the backend. Implementations return an
// error only when no HTTP exchange completed; non-2xx statuses are responses.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport posts requests with net/http.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables limiting.
func WithRateLimit(perSecond float64) HTTPOption {
	return func(t *HTTPTransport) {
		if perSecond > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewHTTPTransport returns a transport with the given request timeout.
func NewHTTPTransport(timeout time.Duration, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{client: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do posts req.Body as JSON to req.URL().
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Pragma", "no-cache")
	if req.Authorization != "" {
		httpReq.Header.Set("Authorization", req.Authorization)
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
