// Package remote provides HTTP gateways to the inkweld remote authority.
//
// SnapshotClient and ProjectClient share one Client: JSON bodies, bearer
// token authentication, a client-side rate limiter and per-request
// timeouts. Every failure is returned as a domain error: 404 maps to
// domain.ErrRemoteNotFound, everything else to domain.ErrRemote.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/infra/buildinfo"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the remote origin, e.g. "https://inkweld.example.com".
	BaseURL string

	// Token is sent as "Authorization: Bearer <token>" when non-empty.
	Token string

	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration

	// RateLimit is the sustained request rate per second. Zero disables
	// limiting.
	RateLimit float64

	// Burst is the limiter bucket size. Default: 1 when RateLimit is set.
	Burst int
}

// Client performs JSON requests against the remote authority.
type Client struct {
	baseURL   string
	token     string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a new HTTP client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL != "" && !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:   baseURL,
		token:     cfg.Token,
		client:    &http.Client{Timeout: timeout},
		limiter:   limiter,
		userAgent: buildinfo.UserAgent(),
	}
}

// BaseURL returns the base URL of the client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping issues a GET to path and reports whether the remote answered with a
// non-5xx status.
func (c *Client) Ping(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.addHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ErrRemote.WithDetails("GET " + path).WithCause(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return domain.ErrRemote.WithDetails(fmt.Sprintf("GET %s: status %d", path, resp.StatusCode))
	}
	return nil
}

// do sends body as JSON (when non-nil) and decodes the response into
// target (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	op := method + " " + path

	if c.baseURL == "" {
		return domain.ErrRemote.WithDetails(op + ": no remote configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.ErrRemote.WithDetails(op).WithCause(err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ErrRemote.WithDetails(op).WithCause(err)
	}
	return parseResponse(resp, op, target)
}

// addHeaders adds authentication and common headers.
func (c *Client) addHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// parseResponse parses a JSON response body into the target struct.
func parseResponse(resp *http.Response, op string, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return domain.ErrRemoteNotFound.WithDetails(op)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			msg := errResp.Message
			if msg == "" {
				msg = errResp.Error
			}
			if msg != "" {
				if errResp.Code != "" {
					msg = "[" + errResp.Code + "] " + msg
				}
				return domain.ErrRemote.WithDetails(fmt.Sprintf("%s: %s", op, msg))
			}
		}
		return domain.ErrRemote.WithDetails(fmt.Sprintf("%s: status %d", op, resp.StatusCode))
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return domain.ErrRemote.WithDetails(op + ": parse response").WithCause(err)
		}
	}

	return nil
}

func projectPath(prefix string, key domain.ProjectKey, rest ...string) string {
	parts := []string{prefix, url.PathEscape(key.Username), url.PathEscape(key.Slug)}
	for _, r := range rest {
		parts = append(parts, url.PathEscape(r))
	}
	return strings.Join(parts, "/")
}
