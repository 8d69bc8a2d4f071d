// Package api is a thin REST client for the trading backend's HTTP
// surface. The WebSocket session carries all realtime traffic; this
// client only covers the request/response endpoints (account listing,
// API key management, profile reads).
package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/tradterm/tradterm/internal/config"
)

// TokenSource supplies the bearer token attached to outgoing requests.
// Implementations may return an empty string when no session exists;
// the request is then sent unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource backed by a fixed string.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// Client wraps resty with base URL, timeout and auth handling taken
// from the loaded configuration.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	log    zerolog.Logger
}

func New(cfg config.APIConfig, tokens TokenSource, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	c := &Client{
		http:   httpClient,
		tokens: tokens,
		log:    logger.With().Str("component", "api").Logger(),
	}
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if c.tokens != nil {
			if token := c.tokens.Token(); token != "" {
				req.SetAuthToken(token)
			}
		}
		return nil
	})
	return c
}

// Error carries the HTTP status and response body of a failed call.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Body)
}

func (c *Client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		c.log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode()).
			Msg("request failed")
		return &Error{Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

// Get fetches path and decodes the JSON response into out. Pass nil
// when the body is not needed.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	req := c.http.R().SetContext(ctx)
	if out != nil {
		req.SetResult(out)
	}
	return c.do(req, resty.MethodGet, path)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	return c.do(req, resty.MethodPost, path)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	return c.do(req, resty.MethodPut, path)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(c.http.R().SetContext(ctx), resty.MethodDelete, path)
}

// Account is an exchange account known to the backend.
type Account struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Network string         `json:"network,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// UpsertKeyRequest creates or replaces the API key stored under a
// label.
type UpsertKeyRequest struct {
	Label  string         `json:"label"`
	KeyID  string         `json:"key_id"`
	Secret string         `json:"secret"`
	Meta   map[string]any `json:"meta,omitempty"`
}

func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.Get(ctx, "/api/accounts", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) UpsertKey(ctx context.Context, req UpsertKeyRequest) (*Account, error) {
	var account Account
	path := "/api/keys/" + url.PathEscape(req.Label)
	if err := c.Put(ctx, path, req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) DeleteKey(ctx context.Context, label string) error {
	return c.Delete(ctx, "/api/keys/"+url.PathEscape(label))
}
