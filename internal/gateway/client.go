// Package gateway is the typed HTTP client for the storefront backend's
// cart, session and order endpoints.
//
// Every call runs through the same middleware chain:
//
//	botGuard -> retryOnGone -> normalize -> sessionAttach -> send
//
// so bot short-circuiting, the one-shot session-expiry retry, error
// normalization and session header propagation apply uniformly.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 10 * time.Second

// SessionStore is the session identity the gateway reads and refreshes.
type SessionStore interface {
	GetSessionID() string
	SetSession(ctx context.Context, s domain.Session) error
	IsSessionExpired() bool
	ClearSession(ctx context.Context) error
	SessionHeaders() http.Header
	HandleSessionResponse(ctx context.Context, h http.Header)
}

// Options configures a Client. BaseURL includes the /api prefix.
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	UserAgent   string
	Fingerprint string
	Logger      zerolog.Logger
}

// Client talks to the backend on behalf of a single visitor.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	fingerprint string
	bot         bool
	sessions    SessionStore
	logger      zerolog.Logger
	ensureGroup singleflight.Group
	nowFunc     func() time.Time

	pipeline handler
}

func New(opts Options, sessions SessionStore) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  httpClient,
		userAgent:   opts.UserAgent,
		fingerprint: opts.Fingerprint,
		bot:         IsBot(opts.UserAgent),
		sessions:    sessions,
		logger:      opts.Logger.With().Str("component", "gateway").Logger(),
		nowFunc:     time.Now,
	}
	c.pipeline = chain(c.send,
		c.botGuard,
		c.retryOnGone,
		c.normalize,
		c.sessionAttach,
	)
	return c
}

// IsBot reports whether this client short-circuits every call.
func (c *Client) IsBot() bool {
	return c.bot
}

// do runs a call through the pipeline and decodes a successful body into out.
func (c *Client) do(ctx context.Context, cl *call, out interface{}) error {
	rep, err := c.pipeline(ctx, cl)
	if err != nil {
		return err
	}
	if out == nil || len(rep.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(rep.body, out); err != nil {
		return &domain.APIError{
			Message:    fmt.Sprintf("decode %s %s response", cl.method, cl.path),
			StatusCode: rep.status,
			RequestID:  rep.header.Get(headerRequestID),
			Err:        err,
		}
	}
	return nil
}
