// Package relay performs server-side fetches on behalf of the dashboard
// so listing pages can be read without tripping cross-origin restrictions
// in the browser.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/estatedesk/backend/pkg/config"
	"github.com/estatedesk/backend/pkg/logger"
)

type Client struct {
	httpClient *http.Client
	userAgent  string
	maxBody    int64
}

func NewClient(cfg config.RelayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxBody := int64(cfg.MaxBody)
	if maxBody == 0 {
		maxBody = 5 << 20
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  cfg.UserAgent,
		maxBody:    maxBody,
	}
}

// Fetch retrieves the raw response body of target as text, presenting a
// standard desktop-browser user agent.
func (c *Client) Fetch(ctx context.Context, target string) (string, error) {
	if !IsValidURL(target) {
		return "", fmt.Errorf("invalid url: %q", target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	logger.Debug("Relay fetch completed",
		zap.String("url", target),
		zap.Int("bytes", len(body)),
	)
	return string(body), nil
}

// IsValidURL reports whether s parses as an absolute http(s) URL.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
