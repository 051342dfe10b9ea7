// Package gsn talks to the GSN service: OAuth2 token endpoints and the sensors REST API.
package gsn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AI2HU/gsnweb/internal/config"
	"github.com/AI2HU/gsnweb/internal/logger"
	"github.com/AI2HU/gsnweb/internal/metrics"
)

// Default client tuning
const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = rate.Limit(10)
	DefaultBurst     = 20

	// tokens are renewed this long before they expire
	tokenExpiryLeeway = 30 * time.Second

	// GSN expects timestamps without zone
	timeLayout = "2006-01-02T15:04:05"
)

// ErrUnauthorized is wrapped by errors caused by a rejected token or client credentials
var ErrUnauthorized = errors.New("gsn: unauthorized")

// APIError is a non-2xx reply of the GSN service
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gsn %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap maps 401 replies to ErrUnauthorized
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// TokenResponse is the reply of the oauth2/token endpoint
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// DataQuery selects a window of sensor data
type DataQuery struct {
	From time.Time
	To   time.Time
	Size int // zero means the configured maximum
}

// Client is a GSN service client bound to one configuration
type Client struct {
	cfg        config.GSNConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
	log        *logger.Logger

	mu           sync.Mutex
	serviceToken *TokenResponse
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimit sets the outbound request rate
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the GSN service described by cfg
func New(cfg config.GSNConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(DefaultRateLimit, DefaultBurst),
		now:        time.Now,
		log:        logger.Named("gsn"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxQuerySize returns the configured upper bound of a data query
func (c *Client) MaxQuerySize() int {
	return c.cfg.MaxQuerySize
}

// ClampSize bounds a requested result size to [1, MaxQuerySize]; zero or negative means the maximum
func (c *Client) ClampSize(size int) int {
	limit := c.cfg.MaxQuerySize
	if limit <= 0 {
		return size
	}
	if size <= 0 || size > limit {
		return limit
	}
	return size
}

// AuthorizeURL returns the public URL the browser is sent to for login
func (c *Client) AuthorizeURL(state, redirectURI string) (string, error) {
	endpoint, err := url.JoinPath(c.cfg.ServiceURLPublic, "oauth2", "auth")
	if err != nil {
		return "", fmt.Errorf("invalid public service URL: %w", err)
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("state", state)
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	return endpoint + "?" + q.Encode(), nil
}

// ExchangeCode trades an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	return c.requestToken(ctx, form)
}

// RefreshToken obtains a new access token from a refresh token
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.requestToken(ctx, form)
}

// ClientCredentials obtains a token for the backend itself
func (c *Client) ClientCredentials(ctx context.Context) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	return c.requestToken(ctx, form)
}

// ServiceToken returns a cached client-credentials access token, renewing it when close to expiry
func (c *Client) ServiceToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t := c.serviceToken; t != nil && (t.ExpiresAt.IsZero() || c.now().Add(tokenExpiryLeeway).Before(t.ExpiresAt)) {
		return t.AccessToken, nil
	}

	token, err := c.ClientCredentials(ctx)
	if err != nil {
		return "", err
	}
	c.serviceToken = token
	c.log.Debug("service token renewed, expires at %s", token.ExpiresAt.Format(time.RFC3339))
	return token.AccessToken, nil
}

// InvalidateServiceToken drops the cached service token
func (c *Client) InvalidateServiceToken() {
	c.mu.Lock()
	c.serviceToken = nil
	c.mu.Unlock()
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	endpoint, err := url.JoinPath(c.cfg.ServiceURLLocal, "oauth2", "token")
	if err != nil {
		return nil, fmt.Errorf("invalid local service URL: %w", err)
	}

	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "token")
	if err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response carries no access_token")
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &token, nil
}

// ListSensors returns the sensor list as served by GSN
func (c *Client) ListSensors(ctx context.Context, accessToken string) (json.RawMessage, error) {
	endpoint, err := url.JoinPath(c.cfg.ServiceURLLocal, "api", "sensors")
	if err != nil {
		return nil, fmt.Errorf("invalid local service URL: %w", err)
	}
	return c.get(ctx, "sensors", endpoint, accessToken)
}

// SensorData returns the data of one sensor; the size is clamped to the configured maximum
func (c *Client) SensorData(ctx context.Context, accessToken, sensor string, q DataQuery) (json.RawMessage, error) {
	if strings.TrimSpace(sensor) == "" {
		return nil, fmt.Errorf("sensor name is required")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, fmt.Errorf("invalid time window: to %s is before from %s", q.To.Format(timeLayout), q.From.Format(timeLayout))
	}

	endpoint, err := url.JoinPath(c.cfg.ServiceURLLocal, "api", "sensors", sensor, "data")
	if err != nil {
		return nil, fmt.Errorf("invalid local service URL: %w", err)
	}

	params := url.Values{}
	params.Set("size", strconv.Itoa(c.ClampSize(q.Size)))
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format(timeLayout))
	}
	if !q.To.IsZero() {
		params.Set("to", q.To.UTC().Format(timeLayout))
	}

	return c.get(ctx, "sensor_data", endpoint+"?"+params.Encode(), accessToken)
}

func (c *Client) get(ctx context.Context, name, endpoint, accessToken string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	body, err := c.do(req, name)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("gsn %s: response is not valid JSON", name)
	}
	return json.RawMessage(body), nil
}

// do sends a request under the rate limit and returns the body of a 2xx reply
func (c *Client) do(req *http.Request, name string) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(name, 0, time.Since(start))
		return nil, fmt.Errorf("gsn %s: request failed: %w", name, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(name, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gsn %s: failed to read response: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warning("%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
		return nil, &APIError{Endpoint: name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
