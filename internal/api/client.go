// ABOUTME: Typed HTTP client for the docent backend API
// ABOUTME: Owns base URL, auth token source, validation, and the model catalog cache

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
)

// defaultModelCacheTTL is how long the model catalog is served from cache.
const defaultModelCacheTTL = 5 * time.Minute

// TokenSource supplies and refreshes the access token stamped on
// authenticated requests. session.Manager implements it.
type TokenSource interface {
	// Token returns the current access token, possibly refreshing a
	// near-expiry one first. Empty token with nil error means the session
	// is unauthenticated.
	Token(ctx context.Context) (string, error)

	// Refresh exchanges the refresh token for a new access token after
	// staleAccess was rejected. Returns session.ErrSessionExpired when
	// refresh is impossible.
	Refresh(ctx context.Context, staleAccess string) (string, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the root of the backend API, e.g. "http://localhost:8000/api".
	BaseURL string

	// Tokens provides access tokens for protected endpoints.
	Tokens TokenSource

	// HTTPClient is used for all requests. Defaults to http.DefaultClient;
	// set the request timeout here.
	HTTPClient *http.Client

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// RebuildPath and ResetPath are the knowledge-base lifecycle routes,
	// relative to an agent: the backend exposes them as DRF actions. The
	// defaults match the observed server; override if a deployment mounts
	// them elsewhere.
	RebuildPath string
	ResetPath   string

	// ModelCacheTTL bounds how long the model catalog is cached.
	ModelCacheTTL time.Duration
}

// Client is the sole translation boundary between the backend's snake_case
// wire format and the client's domain types.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenSource
	logger      *slog.Logger
	validate    *validator.Validate
	models      *cache.Cache
	rebuildPath string
	resetPath   string
}

// New creates a backend API client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("api: token source is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rebuildPath := opts.RebuildPath
	if rebuildPath == "" {
		rebuildPath = "rebuild"
	}
	resetPath := opts.ResetPath
	if resetPath == "" {
		resetPath = "reset_kb"
	}

	ttl := opts.ModelCacheTTL
	if ttl == 0 {
		ttl = defaultModelCacheTTL
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  httpClient,
		tokens:      opts.Tokens,
		logger:      logger.With("component", "api"),
		validate:    validator.New(),
		models:      cache.New(ttl, 2*ttl),
		rebuildPath: rebuildPath,
		resetPath:   resetPath,
	}, nil
}

// validateStruct runs validator tags over v and converts the first failure
// into a *ValidationError. No request is made when validation fails.
func (c *Client) validateStruct(v interface{}) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("does not satisfy %q", fe.Tag()),
		}
	}
	return err
}
