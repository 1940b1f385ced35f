package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service/session"

	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 4 << 20
)

type call struct {
	method string
	path   string
	body   interface{}
	header http.Header
	// noRetry marks session bootstrap calls that must not trigger the 410
	// recovery themselves.
	noRetry bool
}

type reply struct {
	status int
	header http.Header
	body   []byte
}

type handler func(ctx context.Context, cl *call) (*reply, error)

type middleware func(next handler) handler

// chain wraps h so that mws[0] is the outermost layer.
func chain(h handler, mws ...middleware) handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (c *Client) botGuard(next handler) handler {
	return func(ctx context.Context, cl *call) (*reply, error) {
		if !c.bot {
			return next(ctx, cl)
		}
		c.logger.Debug().Str("method", cl.method).Str("path", cl.path).Msg("bot user agent, serving placeholder")
		return botReply(cl, c.nowFunc())
	}
}

// retryOnGone recovers from a single 410 by creating a fresh session and
// replaying the call once. A second failure propagates.
func (c *Client) retryOnGone(next handler) handler {
	return func(ctx context.Context, cl *call) (*reply, error) {
		rep, err := next(ctx, cl)
		if err == nil || cl.noRetry || !domain.IsSessionExpired(err) {
			return rep, err
		}
		c.logger.Info().Str("method", cl.method).Str("path", cl.path).Msg("session expired, recreating and retrying once")
		if _, serr := c.CreateAnonymousSession(ctx); serr != nil {
			return nil, serr
		}
		return next(ctx, cl)
	}
}

type errorBody struct {
	Message   string      `json:"message"`
	Error     string      `json:"error"`
	Details   interface{} `json:"details"`
	Errors    interface{} `json:"errors"`
	RequestID string      `json:"request_id"`
}

// normalize converts transport failures and non-2xx replies into *domain.APIError.
func (c *Client) normalize(next handler) handler {
	return func(ctx context.Context, cl *call) (*reply, error) {
		rep, err := next(ctx, cl)
		if err != nil {
			var apiErr *domain.APIError
			if errors.As(err, &apiErr) {
				return nil, err
			}
			c.logger.Error().Err(err).Str("method", cl.method).Str("path", cl.path).Msg("backend request failed")
			return nil, &domain.APIError{Message: "network error", Err: err}
		}
		if rep.status >= 200 && rep.status < 300 {
			return rep, nil
		}
		return nil, errorFromReply(rep)
	}
}

func errorFromReply(rep *reply) *domain.APIError {
	apiErr := &domain.APIError{
		StatusCode: rep.status,
		RequestID:  rep.header.Get(headerRequestID),
	}
	var body errorBody
	if len(rep.body) > 0 && json.Unmarshal(rep.body, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		apiErr.Details = body.Details
		if apiErr.Details == nil {
			apiErr.Details = body.Errors
		}
		if body.RequestID != "" {
			apiErr.RequestID = body.RequestID
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("request failed with status %d", rep.status)
	}
	return apiErr
}

// sessionAttach adds the session header and feeds rotation headers back to
// the session store.
func (c *Client) sessionAttach(next handler) handler {
	return func(ctx context.Context, cl *call) (*reply, error) {
		if cl.header == nil {
			cl.header = http.Header{}
		}
		cl.header.Del(session.HeaderSessionID)
		for k, vs := range c.sessions.SessionHeaders() {
			for _, v := range vs {
				cl.header.Add(k, v)
			}
		}
		rep, err := next(ctx, cl)
		if rep != nil {
			c.sessions.HandleSessionResponse(ctx, rep.header)
		}
		return rep, err
	}
}

func (c *Client) send(ctx context.Context, cl *call) (*reply, error) {
	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set(headerRequestID, uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().
		Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("backend call")
	return &reply{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}
