package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/clientstate"

	"github.com/rs/zerolog"
)

const (
	HeaderSessionID      = "X-Session-ID"
	HeaderNewSessionID   = "X-New-Session-ID"
	HeaderSessionExpires = "X-Session-Expires"

	// DefaultRefreshBuffer renews sessions this long before their hard expiry.
	DefaultRefreshBuffer = 5 * time.Minute

	rotationFallbackTTL = 24 * time.Hour
)

// Manager owns one visitor's anonymous cart session. It is the only writer of
// the cart_session storage key.
type Manager struct {
	mu      sync.RWMutex
	session *domain.Session

	storage clientstate.Storage
	logger  zerolog.Logger
	buffer  time.Duration
	nowFunc func() time.Time
}

type Option func(*Manager)

func WithRefreshBuffer(d time.Duration) Option {
	return func(m *Manager) { m.buffer = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFunc = now }
}

// NewManager builds a Manager and hydrates it once from storage.
func NewManager(ctx context.Context, storage clientstate.Storage, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		storage: storage,
		logger:  logger.With().Str("component", "session").Logger(),
		buffer:  DefaultRefreshBuffer,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.hydrate(ctx)
	return m
}

func (m *Manager) hydrate(ctx context.Context) {
	raw, err := m.storage.Get(ctx, clientstate.KeyCartSession)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.Error().Err(err).Msg("read persisted session")
		}
		return
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil || s.SessionID == "" || s.ExpiresAt.IsZero() {
		m.logger.Warn().Msg("discarding malformed persisted session")
		if err := m.ClearSession(ctx); err != nil {
			m.logger.Error().Err(err).Msg("clear malformed session")
		}
		return
	}
	m.session = &s
}

// GetSessionID returns the cached session id, or "" when there is none.
func (m *Manager) GetSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.SessionID
}

// Session returns a copy of the cached session.
func (m *Manager) Session() (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return domain.Session{}, false
	}
	return *m.session, true
}

// SetSession replaces the cached session and persists it. The in-memory copy
// is replaced even when persisting fails.
func (m *Manager) SetSession(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	cp := s
	m.session = &cp
	m.mu.Unlock()

	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.storage.Set(ctx, clientstate.KeyCartSession, raw)
}

// IsSessionExpired is true when no session is loaded or now is within the
// refresh buffer of the expiry.
func (m *Manager) IsSessionExpired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return true
	}
	return !m.nowFunc().Before(m.session.ExpiresAt.Add(-m.buffer))
}

func (m *Manager) ClearSession(ctx context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return m.storage.Delete(ctx, clientstate.KeyCartSession)
}

// SessionHeaders returns the request headers identifying the session; empty
// when there is none.
func (m *Manager) SessionHeaders() http.Header {
	h := http.Header{}
	if id := m.GetSessionID(); id != "" {
		h.Set(HeaderSessionID, id)
	}
	return h
}

// HandleSessionResponse applies a server-side session rotation signalled by
// response headers. Responses without rotation headers are ignored.
func (m *Manager) HandleSessionResponse(ctx context.Context, h http.Header) {
	newID := strings.TrimSpace(h.Get(HeaderNewSessionID))
	expires, hasExpiry := parseExpiry(h.Get(HeaderSessionExpires))
	if newID == "" && !hasExpiry {
		return
	}

	current, ok := m.Session()
	next := current
	if !ok {
		if newID == "" {
			return
		}
		next = domain.Session{CreatedAt: m.nowFunc(), ExpiresAt: m.nowFunc().Add(rotationFallbackTTL)}
	}
	if newID != "" && newID != current.SessionID {
		next.SessionID = newID
		next.CreatedAt = m.nowFunc()
	}
	if hasExpiry {
		next.ExpiresAt = expires
	}
	if ok && next == current {
		return
	}

	if err := m.SetSession(ctx, next); err != nil {
		m.logger.Error().Err(err).Msg("persist rotated session")
		return
	}
	m.logger.Info().Bool("rotated", next.SessionID != current.SessionID).Time("expires_at", next.ExpiresAt).Msg("session updated from response headers")
}

// parseExpiry accepts RFC 3339 timestamps or unix seconds.
func parseExpiry(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}
