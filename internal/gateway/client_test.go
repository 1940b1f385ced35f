package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/clientstate"
	"storefront/internal/service/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// fakeBackend records calls and serves programmable responses per path.
type fakeBackend struct {
	mu         sync.Mutex
	calls      map[string]int
	sessionIDs []string
	handlers   map[string]http.HandlerFunc
	nextID     int
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{calls: map[string]int{}, handlers: map[string]http.HandlerFunc{}}
	b.handlers["POST /cart_sessions"] = func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.nextID++
		id := "sess-" + string(rune('0'+b.nextID))
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"cart":       map[string]interface{}{"id": "cart-1", "session_id": id},
			"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		})
	}
	return b
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.calls[key]++
	b.sessionIDs = append(b.sessionIDs, r.Header.Get(session.HeaderSessionID))
	h := b.handlers[key]
	b.mu.Unlock()
	if h == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w, r)
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *fakeBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, baseURL, ua string) (*Client, *session.Manager) {
	t.Helper()
	sessions := session.NewManager(context.Background(), clientstate.Scope(clientstate.NewMemory(), "visitor"), zerolog.Nop())
	c := New(Options{BaseURL: baseURL, UserAgent: ua, Fingerprint: "v1:test", Logger: zerolog.Nop()}, sessions)
	return c, sessions
}

func TestEnsureSessionIsStable(t *testing.T) {
	backend := newFakeBackend()
	backend.handlers["GET /cart_sessions/sess-1/validate"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, browserUA)
	ctx := context.Background()

	first, err := c.EnsureSession(ctx)
	require.NoError(t, err)
	second, err := c.EnsureSession(ctx)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.count("POST /cart_sessions"))
}

func TestEnsureSessionReplacesRejectedSession(t *testing.T) {
	backend := newFakeBackend()
	backend.handlers["GET /cart_sessions/stale/validate"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, sessions := newTestClient(t, srv.URL, browserUA)
	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, domain.Session{SessionID: "stale", ExpiresAt: time.Now().Add(time.Hour)}))

	id, err := c.EnsureSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)
	assert.Equal(t, "sess-1", sessions.GetSessionID())
}

func TestEnsureSessionSkipsValidationWhenExpired(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, sessions := newTestClient(t, srv.URL, browserUA)
	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, domain.Session{SessionID: "old", ExpiresAt: time.Now().Add(time.Minute)}))

	id, err := c.EnsureSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)
	assert.Equal(t, 0, backend.count("GET /cart_sessions/old/validate"))
}

func TestValidateSessionFailureClearsSession(t *testing.T) {
	backend := newFakeBackend()
	backend.handlers["GET /cart_sessions/s1/validate"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, sessions := newTestClient(t, srv.URL, browserUA)
	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, domain.Session{SessionID: "s1", ExpiresAt: time.Now().Add(time.Hour)}))

	assert.False(t, c.ValidateSession(ctx, "s1"))
	assert.Equal(t, "", sessions.GetSessionID())
}

func TestBotUserAgentNeverHitsNetwork(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	ctx := context.Background()

	require.True(t, c.IsBot())
	id, err := c.EnsureSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, BotSessionID, id)

	cart, err := c.AddItem(ctx, domain.AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, PlaceholderCart().ID, cart.ID)
	assert.Empty(t, cart.Items)

	current, err := c.GetCurrentCart(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.NoError(t, c.RemoveItem(ctx, "x"))
	related, err := c.GetRelatedProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, related)

	assert.Equal(t, 0, backend.total())
}

func TestRetriesOnceAfterSessionExpiry(t *testing.T) {
	backend := newFakeBackend()
	attempts := 0
	backend.handlers["POST /carts/add_item"] = func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			writeJSON(w, http.StatusGone, map[string]string{"message": "session expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "cart-1", "items": []interface{}{}})
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, sessions := newTestClient(t, srv.URL, browserUA)
	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, domain.Session{SessionID: "expired", ExpiresAt: time.Now().Add(time.Hour)}))

	cart, err := c.AddItem(ctx, domain.AddItemInput{ProductID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "cart-1", cart.ID)
	assert.Equal(t, 2, backend.count("POST /carts/add_item"))
	assert.Equal(t, 1, backend.count("POST /cart_sessions"))
	assert.Equal(t, "sess-1", sessions.GetSessionID())

	backend.mu.Lock()
	last := backend.sessionIDs[len(backend.sessionIDs)-1]
	backend.mu.Unlock()
	assert.Equal(t, "sess-1", last, "retry carries the new session")
}

func TestSecondSessionExpiryPropagates(t *testing.T) {
	backend := newFakeBackend()
	backend.handlers["POST /carts/add_item"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusGone, map[string]string{"message": "session expired"})
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, browserUA)
	_, err := c.AddItem(context.Background(), domain.AddItemInput{ProductID: "p1"})
	require.Error(t, err)
	assert.True(t, domain.IsSessionExpired(err))
	assert.Equal(t, 2, backend.count("POST /carts/add_item"))
	assert.Equal(t, 1, backend.count("POST /cart_sessions"))
}

func TestGetCurrentCartNotFoundIsNil(t *testing.T) {
	backend := newFakeBackend()
	backend.handlers["GET /carts"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no cart"})
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, browserUA)
	cart, err := c.GetCurrentCart(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cart)
}

func TestErrorsAreNormalized(t *testing.T) {
	backend := newFakeBackend()
	backend.handlers["POST /carts/apply_promotion"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"message":    "code expired",
			"details":    map[string]string{"code": "SUMMER"},
			"request_id": "req-42",
		})
	}
	backend.handlers["POST /carts/add_bundle"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, browserUA)
	ctx := context.Background()

	_, err := c.ApplyPromotion(ctx, []string{"SUMMER"})
	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "code expired", apiErr.Message)
	assert.Equal(t, "req-42", apiErr.RequestID)
	assert.NotNil(t, apiErr.Details)

	_, err = c.AddBundle(ctx, "promo-1")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
}

func TestTransportErrorsAreNormalized(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := newTestClient(t, url, browserUA)
	_, err := c.CreateCart(context.Background())
	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.NotNil(t, apiErr.Unwrap())
}

func TestRotationHeadersUpdateSession(t *testing.T) {
	backend := newFakeBackend()
	backend.handlers["POST /carts"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(session.HeaderNewSessionID, "rotated")
		w.Header().Set(session.HeaderSessionExpires, time.Now().Add(2*time.Hour).UTC().Format(time.RFC3339))
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "cart-1"})
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c, sessions := newTestClient(t, srv.URL, browserUA)
	ctx := context.Background()
	require.NoError(t, sessions.SetSession(ctx, domain.Session{SessionID: "before", ExpiresAt: time.Now().Add(time.Hour)}))

	_, err := c.CreateCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rotated", sessions.GetSessionID())
}

func TestIsBot(t *testing.T) {
	assert.True(t, IsBot("Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)"))
	assert.True(t, IsBot("facebookexternalhit/1.1"))
	assert.False(t, IsBot(browserUA))
	assert.False(t, IsBot(""))
}

func TestFingerprintIsStable(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	r1.Header.Set("User-Agent", browserUA)
	r1.Header.Set("Accept-Language", "vi-VN")
	r2 := httptest.NewRequest(http.MethodGet, "/other", nil)
	r2.Header.Set("User-Agent", browserUA)
	r2.Header.Set("Accept-Language", "vi-VN")

	assert.Equal(t, Fingerprint(r1), Fingerprint(r2))
	assert.Len(t, Fingerprint(r1), 35)
}
