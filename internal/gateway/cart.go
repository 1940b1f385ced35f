package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/domain"
)

type sessionRequest struct {
	BrowserFingerprint string `json:"browser_fingerprint,omitempty"`
	UserAgent          string `json:"user_agent,omitempty"`
}

type sessionResponse struct {
	SessionID string      `json:"session_id,omitempty"`
	Cart      domain.Cart `json:"cart"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

type relatedProductsResponse struct {
	RelatedProducts []domain.RelatedProduct `json:"related_products"`
}

// UpdateItemResult is whatever the update endpoint echoes back. Callers
// should refetch the cart rather than rely on it.
type UpdateItemResult struct {
	Item *domain.CartItem `json:"item,omitempty"`
	Cart *domain.Cart     `json:"cart,omitempty"`
}

// CreateAnonymousSession opens a new anonymous session and stores it.
func (c *Client) CreateAnonymousSession(ctx context.Context) (*domain.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, &call{
		method:  http.MethodPost,
		path:    "/cart_sessions",
		body:    sessionRequest{BrowserFingerprint: c.fingerprint, UserAgent: c.userAgent},
		noRetry: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	id := resp.SessionID
	if id == "" {
		id = resp.Cart.SessionID
	}
	if id == "" {
		return nil, fmt.Errorf("create session: %w", domain.ErrNoSession)
	}
	s := domain.Session{SessionID: id, CreatedAt: c.nowFunc(), ExpiresAt: resp.ExpiresAt}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = resp.Cart.ExpiresAt
	}
	if err := c.sessions.SetSession(ctx, s); err != nil {
		c.logger.Error().Err(err).Msg("persist new session")
	}
	return &s, nil
}

// ValidateSession treats any failure as an invalid session and clears it.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) bool {
	var resp validateResponse
	err := c.do(ctx, &call{
		method:  http.MethodGet,
		path:    "/cart_sessions/" + url.PathEscape(sessionID) + "/validate",
		noRetry: true,
	}, &resp)
	if err != nil {
		c.logger.Warn().Err(err).Msg("session validation failed")
		if cerr := c.sessions.ClearSession(ctx); cerr != nil {
			c.logger.Error().Err(cerr).Msg("clear session")
		}
		return false
	}
	return resp.Valid
}

// EnsureSession returns a usable session id, creating or replacing the
// session when it is missing, expired or rejected by the backend.
// Concurrent callers share one in-flight check.
func (c *Client) EnsureSession(ctx context.Context) (string, error) {
	if c.bot {
		return BotSessionID, nil
	}
	v, err, _ := c.ensureGroup.Do("ensure", func() (interface{}, error) {
		id := c.sessions.GetSessionID()
		if id != "" && !c.sessions.IsSessionExpired() && c.ValidateSession(ctx, id) {
			return id, nil
		}
		s, err := c.CreateAnonymousSession(ctx)
		if err != nil {
			return "", err
		}
		return s.SessionID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetCurrentCart returns nil without error when the backend has no cart.
func (c *Client) GetCurrentCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	err := c.do(ctx, &call{method: http.MethodGet, path: "/carts"}, &cart)
	if err != nil {
		if domain.StatusOf(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

func (c *Client) CreateCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.do(ctx, &call{method: http.MethodPost, path: "/carts"}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adds quantity units of a product; quantity defaults to 1.
func (c *Client) AddItem(ctx context.Context, in domain.AddItemInput) (*domain.Cart, error) {
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	var cart domain.Cart
	if err := c.do(ctx, &call{method: http.MethodPost, path: "/carts/add_item", body: in}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) AddBundle(ctx context.Context, promotionID string) (*domain.Cart, error) {
	var cart domain.Cart
	body := map[string]string{"promotion_id": promotionID}
	if err := c.do(ctx, &call{method: http.MethodPost, path: "/carts/add_bundle", body: body}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) UpdateItem(ctx context.Context, itemID string, quantity int) (*UpdateItemResult, error) {
	var res UpdateItemResult
	body := map[string]interface{}{"item_id": itemID, "quantity": quantity}
	if err := c.do(ctx, &call{method: http.MethodPut, path: "/carts/update_item", body: body}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) RemoveItem(ctx context.Context, itemID string) error {
	body := map[string]string{"item_id": itemID}
	return c.do(ctx, &call{method: http.MethodDelete, path: "/carts/remove_item", body: body}, nil)
}

func (c *Client) EmailCart(ctx context.Context, req domain.EmailCartRequest) (*domain.EmailCartResponse, error) {
	var resp domain.EmailCartResponse
	if err := c.do(ctx, &call{method: http.MethodPost, path: "/carts/email", body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MergeSharedCart(ctx context.Context, accessToken string) (*domain.Cart, error) {
	var cart domain.Cart
	body := map[string]string{"access_token": accessToken}
	if err := c.do(ctx, &call{method: http.MethodPost, path: "/carts/merge", body: body}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) ApplyPromotion(ctx context.Context, codes []string) (*domain.Cart, error) {
	var cart domain.Cart
	body := map[string][]string{"promotion_codes": codes}
	if err := c.do(ctx, &call{method: http.MethodPost, path: "/carts/apply_promotion", body: body}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) UpdateGuestEmail(ctx context.Context, email string) (*domain.GuestEmailResult, error) {
	var res domain.GuestEmailResult
	body := map[string]string{"email": email}
	if err := c.do(ctx, &call{method: http.MethodPut, path: "/carts/update_guest_email", body: body}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetRelatedProducts(ctx context.Context) ([]domain.RelatedProduct, error) {
	var resp relatedProductsResponse
	if err := c.do(ctx, &call{method: http.MethodGet, path: "/categories/related_products"}, &resp); err != nil {
		return nil, err
	}
	if resp.RelatedProducts == nil {
		return []domain.RelatedProduct{}, nil
	}
	return resp.RelatedProducts, nil
}
