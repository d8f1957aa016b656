package bluos

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultTimeout = 5 * time.Second

	// maxBodySize caps a status document; real ones are a few KB.
	maxBodySize = 1 << 20
)

// Client talks to BluOS players over HTTP. One Client serves any number of
// players; the address and port are supplied per call.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. Zero keeps the default of 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchStatus retrieves and parses /Status from the player at address:port.
//
// Returns:
//   - Status: The parsed snapshot
//   - error: Wraps ErrFetchFailed on any transport, HTTP or parse problem
func (c *Client) FetchStatus(ctx context.Context, address string, port int) (Status, error) {
	body, err := c.get(ctx, address, port, "Status")
	if err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	status, err := parseStatus(body)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return status, nil
}

// SendCommand issues GET /{commandPath}, for example "Play" or "Volume?level=40".
//
// Returns:
//   - error: Wraps ErrCommandFailed if the player cannot be reached or rejects the request
func (c *Client) SendCommand(ctx context.Context, commandPath, address string, port int) error {
	if _, err := c.get(ctx, address, port, commandPath); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, commandPath, err)
	}
	return nil
}

// SyncStatus reads the player's identity from /SyncStatus.
func (c *Client) SyncStatus(ctx context.Context, address string, port int) (Identity, error) {
	body, err := c.get(ctx, address, port, "SyncStatus")
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return parseSyncStatus(body)
}

func (c *Client) get(ctx context.Context, address string, port int, path string) ([]byte, error) {
	url := fmt.Sprintf("http://%s/%s", net.JoinHostPort(address, strconv.Itoa(port)), path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
