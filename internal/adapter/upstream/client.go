package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// maxPayloadBytes bounds a single upstream response body.
const maxPayloadBytes = 16 << 20

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client fetches raw forecast and tide pages.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	logger     *slog.Logger
}

// NewClient creates a stateless client whose requests time out after timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: defaultUserAgent,
		maxBytes:  maxPayloadBytes,
		logger:    logger,
	}
}

// NewSessionClient creates a client that keeps cookies between requests, for
// upstreams that only answer inside an established session.
func NewSessionClient(timeout time.Duration, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := NewClient(timeout, logger)
	c.httpClient.Jar = jar
	return c, nil
}

// FetchPayload GETs url and returns the body. Any status other than 200 is an
// error carrying the status and the start of the body.
func (c *Client) FetchPayload(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upstream error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("upstream payload from %s exceeds %d bytes", url, c.maxBytes)
	}
	c.logger.Debug("upstream payload fetched", "url", url, "bytes", len(body))
	return body, nil
}

// CloseIdleConnections releases pooled connections, ending the session.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
