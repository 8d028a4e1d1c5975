// Package meals proxies a public meal-catalog API behind the identity
// middleware, relaying the upstream payload verbatim and translating
// upstream failures into typed errors.
package meals

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// DefaultBaseURL is the public catalog endpoint the client proxies.
	DefaultBaseURL = "https://api.freeapi.app/api/v1/public/meals"
	// DefaultTimeout bounds the full upstream round trip.
	DefaultTimeout = 30 * time.Second
)

const (
	TextCodeUpstreamError   = "MEALS_UPSTREAM_ERROR"
	TextCodeUpstreamTimeout = "MEALS_UPSTREAM_TIMEOUT"
)

// Client fetches meal pages from the upstream catalog.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the upstream endpoint, used by tests to point the
// client at a local server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout overrides the upstream round-trip timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// List fetches one page of the upstream catalog and returns the raw JSON
// body. A non-200 upstream answer becomes a typed upstream error, a
// deadline or client timeout a typed timeout error.
func (c *Client) List(ctx context.Context, page, limit int) ([]byte, error) {
	url := fmt.Sprintf("%s?page=%d&limit=%d", c.baseURL, page, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build upstream request")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return nil, errors.Wrap(err, errors.CategoryOperation, "meal catalog timed out").
				WithTextCode(TextCodeUpstreamTimeout).
				WithCode(http.StatusGatewayTimeout)
		}
		return nil, errors.Wrap(err, errors.CategoryOperation, "meal catalog is unreachable").
			WithTextCode(TextCodeUpstreamError).
			WithCode(http.StatusBadGateway)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errors.New("meal catalog answered with an error", errors.CategoryOperation).
			WithTextCode(TextCodeUpstreamError).
			WithCode(http.StatusBadGateway).
			WithMetadata(map[string]any{
				"upstream_status": res.StatusCode,
			})
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to read meal catalog response").
			WithTextCode(TextCodeUpstreamError).
			WithCode(http.StatusBadGateway)
	}

	return body, nil
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	type timeout interface {
		Timeout() bool
	}

	var terr timeout
	if errors.As(err, &terr) {
		return terr.Timeout()
	}

	return false
}
