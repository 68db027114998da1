package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds a single tile request when no client is given.
const DefaultHTTPTimeout = 30 * time.Second

// ErrStatus is wrapped by errors for non-200 responses.
var ErrStatus = errors.New("source: unexpected HTTP status")

// HTTP fetches tiles from a tile server. The locator is appended to the
// base URL.
type HTTP struct {
	base   string
	client *http.Client
}

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithClient sets the HTTP client. The default client has a
// DefaultHTTPTimeout timeout.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// NewHTTP returns a source fetching below base, e.g.
// "http://localhost:8080/chunks".
func NewHTTP(base string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load requests and decodes the tile at locator. Cancelling ctx aborts
// the request.
func (h *HTTP) Load(ctx context.Context, locator string) (image.Image, error) {
	url := h.base + "/" + strings.TrimPrefix(locator, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("source: request %s: %w", url, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s for %s", ErrStatus, resp.Status, url)
	}
	return Decode(resp.Body)
}
