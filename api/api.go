// Package api is the REST client for the backend endpoints the session core depends on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cccteam/ccc"
	"github.com/go-playground/errors/v5"
)

const defaultTimeout = 10 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client. (default: http.Client with a 10s timeout)
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client calls the backend REST API. Once armed with a token every request carries it
// in the Authorization header.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a Client for the API rooted at baseURL (e.g. https://hr.example.com/api).
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "url.Parse()")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("api base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// SetToken arms the Authorization header with token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
}

// ClearToken removes the Authorization header from subsequent requests.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token returns the token currently armed, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

// PublicKey returns the base64 encoded SPKI public key used to encrypt credentials.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	res := &envelope[struct {
		PublicKey string `json:"publicKey"`
	}]{}
	if err := c.do(ctx, http.MethodGet, "/auth/public-key", nil, res); err != nil {
		return "", errors.Wrap(err, "Client.do()")
	}

	if res.Success != nil && !*res.Success {
		return "", errors.New("public key endpoint reported failure")
	}
	if res.Data.PublicKey == "" {
		return "", errors.New("public key endpoint returned an empty key")
	}

	return res.Data.PublicKey, nil
}

// Login submits credentials. The password may already be encrypted.
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	res := &envelope[LoginResponse]{}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, res); err != nil {
		return nil, errors.Wrap(err, "Client.do()")
	}

	if res.Data.Token == "" {
		return nil, errors.New("login response did not include a token")
	}

	return &res.Data, nil
}

// Company returns the tenant with the given id.
func (c *Client) Company(ctx context.Context, id int64) (*Company, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	res := &envelope[Company]{}
	if err := c.do(ctx, http.MethodGet, "/companies/"+strconv.FormatInt(id, 10), nil, res); err != nil {
		return nil, errors.Wrap(err, "Client.do()")
	}

	return &res.Data, nil
}

// FeatureFlags returns the page flags of the caller's tenant, or of tenantID when it is set
// (cross-tenant role). Keys are returned as sent by the backend (camelCase).
func (c *Client) FeatureFlags(ctx context.Context, tenantID *int64) (map[string]bool, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	path := "/companies/me/feature-flags"
	if tenantID != nil {
		path += "?companyId=" + strconv.FormatInt(*tenantID, 10)
	}

	// Both the enveloped and the bare shape are in use.
	res := &struct {
		Data *featureFlags `json:"data"`
		featureFlags
	}{}
	if err := c.do(ctx, http.MethodGet, path, nil, res); err != nil {
		return nil, errors.Wrap(err, "Client.do()")
	}

	pages := res.Pages
	if res.Data != nil {
		pages = res.Data.Pages
	}
	if pages == nil {
		pages = make(map[string]bool)
	}

	return pages, nil
}

// Profile returns the full profile of the signed-in user.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	res := &envelope[Profile]{}
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, res); err != nil {
		return nil, errors.Wrap(err, "Client.do()")
	}

	return &res.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "json.Marshal()")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "http.NewRequestWithContext()")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "io.ReadAll()")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s %s", method, path)
	}

	return nil
}
