package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/monitoring"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// ErrTokenExpired is the cause of the error returned when the bearer token
// has already expired and the request was not sent.
var ErrTokenExpired = errors.New("token expired")

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token
type StaticToken string

// Token returns t
func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// Client performs JSON requests against the clinic backend
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
	now     func() time.Time
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// New creates a client for baseURL. Request paths are appended to it.
func New(baseURL string, log *logger.Logger, metrics *monitoring.MetricsCollector, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  StaticToken(""),
		logger:  log,
		metrics: metrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client from the api config section
func NewFromConfig(cfg config.APIConfig, log *logger.Logger, metrics *monitoring.MetricsCollector, opts ...Option) (*Client, error) {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
		WithTokenSource(StaticToken(cfg.Token)),
	}
	return New(cfg.BaseURL, log, metrics, append(base, opts...)...)
}

// Get decodes the response of GET path into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

// Post sends body to path and decodes the response into out
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPost, path, body, out)
}

// Patch sends body to path and decodes the response into out
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPatch, path, body, out)
}

// Delete issues DELETE path and decodes the response into out
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Request(ctx, http.MethodDelete, path, nil, out)
}

// Request sends one request. body is JSON-encoded when non-nil and out, when
// non-nil, receives the decoded JSON response. Status >= 400 yields an
// *types.APIError carrying the backend's message; a transport failure yields
// an *types.APIError of type network. Requests are never retried here.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain token: %w", err)
	}
	if c.expired(token) {
		return &types.APIError{
			Type:    types.ErrorTypeAuthentication,
			Code:    types.ErrCodeUnauthorized,
			Message: "token expired",
			Cause:   ErrTokenExpired,
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	requestID, _ := ctx.Value(logger.RequestIDKey).(string)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = context.WithValue(ctx, logger.RequestIDKey, requestID)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordHTTPRequest(method, 0, duration)
		c.logger.HTTPRequest(ctx, method, path, 0, duration.Milliseconds(), map[string]interface{}{"error": err.Error()})
		return types.NewNetworkError(err)
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPRequest(method, resp.StatusCode, duration)
	c.logger.HTTPRequest(ctx, method, path, resp.StatusCode, duration.Milliseconds(), nil)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque
// tokens are never considered expired.
func (c *Client) expired(token string) bool {
	if token == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(c.now())
}

func decodeError(resp *http.Response) error {
	var body types.ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body.Message = strings.TrimSpace(string(raw))
		}
	}
	return types.NewHTTPError(resp.StatusCode, body.Message, body.Errors)
}
