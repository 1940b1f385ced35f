// Package shopper owns the per-visitor bundle of client state: session
// identity, backend gateway, cart store, checkout machine, pending promo
// codes and the quantity controls of the visible cart lines.
package shopper

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/notify"
	"storefront/internal/quantity"
	"storefront/internal/repository/clientstate"
	"storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	"storefront/internal/service/session"

	"github.com/rs/zerolog"
)

type Shopper struct {
	ID       string
	Sessions *session.Manager
	Gateway  *gateway.Client
	Cart     *cart.Store
	Checkout *checkout.Machine
	Promo    *cart.PromoCodes
	Toasts   *notify.Queue
	Counter  *clientstate.ItemCounter
	Profile  *clientstate.ProfileCache

	shareBaseURL  string
	quantityDelay time.Duration
	logger        zerolog.Logger

	// ctx outlives requests; debounced commits run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	controls map[string]*quantity.Control
	lastSeen time.Time
}

func (s *Shopper) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Shopper) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Control returns the quantity control of a cart line, creating it from the
// current cart on first use.
func (s *Shopper) Control(itemID string) (*quantity.Control, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controls[itemID]; ok {
		return c, nil
	}
	view, ok := findView(s.Cart.Snapshot().CartItems, itemID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	opts := []quantity.Option{quantity.WithLogger(s.logger.With().Str("item_id", itemID).Logger())}
	if view.MaxQuantity > 0 {
		opts = append(opts, quantity.WithMax(view.MaxQuantity))
	}
	if s.quantityDelay > 0 {
		opts = append(opts, quantity.WithDelay(s.quantityDelay))
	}
	c := quantity.New(s.ctx, view.Quantity, s.commitQuantity(itemID), opts...)
	s.controls[itemID] = c
	return c, nil
}

func (s *Shopper) commitQuantity(itemID string) quantity.CommitFunc {
	return func(ctx context.Context, qty int) (int, error) {
		if err := s.Cart.UpdateItem(ctx, itemID, qty); err != nil {
			return 0, err
		}
		if view, ok := findView(s.Cart.Snapshot().CartItems, itemID); ok {
			return view.Quantity, nil
		}
		return 0, nil
	}
}

func findView(items []domain.CartItemView, itemID string) (domain.CartItemView, bool) {
	for _, v := range items {
		if v.ID == itemID {
			return v, true
		}
	}
	return domain.CartItemView{}, false
}

// syncControls follows every cart refresh: idle controls adopt the new
// authoritative quantity and controls of vanished lines are closed.
func (s *Shopper) syncControls(st cart.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.controls {
		view, ok := findView(st.CartItems, id)
		if !ok {
			c.Close()
			delete(s.controls, id)
			continue
		}
		if !c.Pending() && c.Committed() != view.Quantity {
			c.Sync(view.Quantity)
		}
	}
}

func (s *Shopper) closeControls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.controls {
		c.Close()
		delete(s.controls, id)
	}
}

// SaveForLater emails the cart and returns its share link.
func (s *Shopper) SaveForLater(ctx context.Context, email string, createAccountPrompt bool) (string, error) {
	return s.Cart.SaveForLater(ctx, email, createAccountPrompt, s.shareBaseURL)
}

// SignIn caches the signed-in display profile and switches checkout to
// authenticated mode.
func (s *Shopper) SignIn(ctx context.Context, profile domain.UserProfile) error {
	if err := s.Profile.Save(ctx, profile); err != nil {
		return err
	}
	s.Checkout.SetProfile(&profile)
	return nil
}

// ClearCart forgets the cart identity and silently loads a fresh cart.
func (s *Shopper) ClearCart(ctx context.Context) {
	s.closeControls()
	s.Promo.Clear()
	s.Checkout.Reset()
	s.Cart.ClearCart(ctx)
	s.Cart.InitializeCart(ctx, true)
}

// SignOut drops the cached profile and the cart so the next visitor on this
// browser starts clean.
func (s *Shopper) SignOut(ctx context.Context) error {
	if err := s.Profile.Clear(ctx); err != nil {
		return err
	}
	s.Checkout.SetProfile(nil)
	s.ClearCart(ctx)
	return nil
}

func (s *Shopper) close() {
	s.closeControls()
	s.cancel()
}
