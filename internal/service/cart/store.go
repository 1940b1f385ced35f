// Package cart holds the visitor's reactive cart state: a mirror of the
// backend cart plus derived line items and order summary.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/i18n"
	"storefront/internal/notify"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type cartGateway interface {
	EnsureSession(ctx context.Context) (string, error)
	GetCurrentCart(ctx context.Context) (*domain.Cart, error)
	CreateCart(ctx context.Context) (*domain.Cart, error)
	AddItem(ctx context.Context, in domain.AddItemInput) (*domain.Cart, error)
	AddBundle(ctx context.Context, promotionID string) (*domain.Cart, error)
	UpdateItem(ctx context.Context, itemID string, quantity int) (*gateway.UpdateItemResult, error)
	RemoveItem(ctx context.Context, itemID string) error
	EmailCart(ctx context.Context, req domain.EmailCartRequest) (*domain.EmailCartResponse, error)
	MergeSharedCart(ctx context.Context, accessToken string) (*domain.Cart, error)
	ApplyPromotion(ctx context.Context, codes []string) (*domain.Cart, error)
	GetRelatedProducts(ctx context.Context) ([]domain.RelatedProduct, error)
}

type sessionClearer interface {
	ClearSession(ctx context.Context) error
}

type itemCounter interface {
	SetTotalItems(ctx context.Context, n int) error
	Reset(ctx context.Context) error
}

var validate = validator.New()

// Error is a user-facing error entry recorded in State.
type Error struct {
	Op      string      `json:"op"`
	Message string      `json:"message"`
	Status  int         `json:"status,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type State struct {
	Cart         *domain.Cart          `json:"cart"`
	Loading      bool                  `json:"loading"`
	Errors       []Error               `json:"errors"`
	CartItems    []domain.CartItemView `json:"cart_items"`
	CartSummary  domain.CartSummary    `json:"cart_summary"`
	EmailLoading bool                  `json:"email_loading"`
	EmailSuccess bool                  `json:"email_success"`
	EmailError   string                `json:"email_error,omitempty"`
}

func initialState() State {
	return State{
		Errors:      []Error{},
		CartItems:   []domain.CartItemView{},
		CartSummary: domain.CartSummary{Currency: defaultCurrency},
	}
}

// Store is the single cart state container of one visitor. Network calls run
// outside the lock: concurrent actions race at the backend and the last
// refetch to complete wins.
type Store struct {
	mu          sync.RWMutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int

	gateway  cartGateway
	sessions sessionClearer
	counter  itemCounter
	notifier notify.Notifier
	tr       *i18n.Translator
	logger   zerolog.Logger
}

func New(gw cartGateway, sessions sessionClearer, counter itemCounter, notifier notify.Notifier, tr *i18n.Translator, logger zerolog.Logger) *Store {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Store{
		state:       initialState(),
		subscribers: make(map[int]func(State)),
		gateway:     gw,
		sessions:    sessions,
		counter:     counter,
		notifier:    notifier,
		tr:          tr,
		logger:      logger.With().Str("component", "cart_store").Logger(),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (st State) clone() State {
	out := st
	out.Errors = append([]Error{}, st.Errors...)
	out.CartItems = append([]domain.CartItemView{}, st.CartItems...)
	return out
}

// Subscribe registers fn for every state change and returns an unsubscribe func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers afterwards.
func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.clone()
	subs := make([]func(State), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub(snapshot)
	}
}

// InitializeCart ensures a session and loads or creates the cart. Silent
// mode leaves loading and error state untouched. Errors never propagate.
func (s *Store) InitializeCart(ctx context.Context, silent bool) {
	if !silent {
		s.update(func(st *State) {
			st.Loading = true
			st.Errors = []Error{}
		})
	}
	cart, err := s.loadOrCreate(ctx)
	if err != nil {
		s.logger.Error().Err(err).Bool("silent", silent).Msg("initialize cart")
		if !silent {
			s.update(func(st *State) {
				st.Loading = false
				st.Errors = []Error{s.errorEntry("initialize", i18n.CartLoadFailed, err)}
			})
		}
		return
	}
	s.applyCart(ctx, cart)
	if !silent {
		s.update(func(st *State) { st.Loading = false })
	}
}

func (s *Store) loadOrCreate(ctx context.Context) (*domain.Cart, error) {
	if _, err := s.gateway.EnsureSession(ctx); err != nil {
		return nil, err
	}
	cart, err := s.gateway.GetCurrentCart(ctx)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return s.gateway.CreateCart(ctx)
	}
	return cart, nil
}

// mutate is the single path for cart-changing actions: run the mutation,
// then always refetch the whole cart and rebuild derived state. The
// mutation's own response is never mirrored.
func (s *Store) mutate(ctx context.Context, op, failKey string, fn func(ctx context.Context) error) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Errors = []Error{}
	})
	defer s.update(func(st *State) { st.Loading = false })

	if s.Snapshot().Cart == nil {
		if _, err := s.gateway.EnsureSession(ctx); err != nil {
			s.fail(op, failKey, err)
			return err
		}
	}
	if err := fn(ctx); err != nil {
		s.fail(op, failKey, err)
		return err
	}
	return s.reconcile(ctx, op, failKey)
}

func (s *Store) reconcile(ctx context.Context, op, failKey string) error {
	cart, err := s.gateway.GetCurrentCart(ctx)
	if err != nil {
		s.fail(op, failKey, err)
		return err
	}
	s.applyCart(ctx, cart)
	return nil
}

func (s *Store) fail(op, failKey string, err error) {
	s.logger.Error().Err(err).Str("op", op).Msg("cart action failed")
	entry := s.errorEntry(op, failKey, err)
	s.update(func(st *State) { st.Errors = append(st.Errors, entry) })
}

func (s *Store) errorEntry(op, failKey string, err error) Error {
	entry := Error{Op: op, Message: s.tr.T(failKey)}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		entry.Status = apiErr.StatusCode
		entry.Details = apiErr.Details
		if domain.IsSessionExpired(err) {
			entry.Message = s.tr.T(i18n.SessionExpired)
		}
	}
	return entry
}

// applyCart replaces the cart wholesale and recomputes everything derived
// from it, including the persisted badge counter.
func (s *Store) applyCart(ctx context.Context, cart *domain.Cart) {
	items := deriveItems(cart, nowFunc())
	summary := summarize(cart)
	s.update(func(st *State) {
		st.Cart = cart
		st.CartItems = items
		st.CartSummary = summary
	})
	if s.counter != nil {
		if err := s.counter.SetTotalItems(ctx, cart.TotalQuantity()); err != nil {
			s.logger.Error().Err(err).Msg("persist cart item count")
		}
	}
}

func (s *Store) AddItem(ctx context.Context, in domain.AddItemInput) error {
	if strings.TrimSpace(in.ProductID) == "" {
		err := errors.New("product id required")
		s.fail("add_item", i18n.AddItemFailed, err)
		return err
	}
	return s.mutate(ctx, "add_item", i18n.AddItemFailed, func(ctx context.Context) error {
		_, err := s.gateway.AddItem(ctx, in)
		return err
	})
}

func (s *Store) AddBundle(ctx context.Context, promotionID string) error {
	return s.mutate(ctx, "add_bundle", i18n.AddBundleFailed, func(ctx context.Context) error {
		_, err := s.gateway.AddBundle(ctx, promotionID)
		return err
	})
}

// UpdateItem sets a line quantity. Zero or negative quantities remove the line.
func (s *Store) UpdateItem(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	return s.mutate(ctx, "update_item", i18n.UpdateItemFailed, func(ctx context.Context) error {
		_, err := s.gateway.UpdateItem(ctx, itemID, quantity)
		return err
	})
}

func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	return s.mutate(ctx, "remove_item", i18n.RemoveItemFailed, func(ctx context.Context) error {
		return s.gateway.RemoveItem(ctx, itemID)
	})
}

func (s *Store) ApplyPromotion(ctx context.Context, codes []string) error {
	return s.mutate(ctx, "apply_promotion", i18n.ApplyPromotionFailed, func(ctx context.Context) error {
		_, err := s.gateway.ApplyPromotion(ctx, codes)
		return err
	})
}

// MergeSharedCart folds a shared cart (opened from an emailed link) into the
// visitor's cart and reports the outcome as a toast.
func (s *Store) MergeSharedCart(ctx context.Context, accessToken string) error {
	err := s.mutate(ctx, "merge", i18n.MergeFailed, func(ctx context.Context) error {
		_, err := s.gateway.MergeSharedCart(ctx, accessToken)
		return err
	})
	if err != nil {
		s.notifier.Notify(notify.LevelError, s.tr.T(i18n.MergeFailed))
		return err
	}
	s.notifier.Notify(notify.LevelSuccess, s.tr.T(i18n.MergeSucceeded))
	return nil
}

// EmailCart sends the cart to email for later. It tracks its own
// loading/success/error slice so the main loading flag is untouched.
func (s *Store) EmailCart(ctx context.Context, email string, createAccountPrompt bool) (*domain.EmailCartResponse, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		s.update(func(st *State) {
			st.EmailSuccess = false
			st.EmailError = s.tr.T(i18n.InvalidEmail)
		})
		return nil, domain.ErrInvalidEmail
	}

	s.update(func(st *State) {
		st.EmailLoading = true
		st.EmailSuccess = false
		st.EmailError = ""
	})
	prompt := createAccountPrompt
	resp, err := s.gateway.EmailCart(ctx, domain.EmailCartRequest{Email: email, CreateAccountPrompt: &prompt})
	if err != nil {
		s.logger.Error().Err(err).Msg("email cart")
		msg := s.emailErrorMessage(err)
		s.update(func(st *State) {
			st.EmailLoading = false
			st.EmailError = msg
		})
		return nil, err
	}
	s.update(func(st *State) {
		st.EmailLoading = false
		st.EmailSuccess = true
	})
	s.notifier.Notify(notify.LevelSuccess, s.tr.T(i18n.EmailCartSent, email))

	// The cart's status changes server side once emailed.
	if cart, err := s.gateway.GetCurrentCart(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("refresh cart after email")
	} else {
		s.applyCart(ctx, cart)
	}
	return resp, nil
}

func (s *Store) emailErrorMessage(err error) string {
	if domain.IsSessionExpired(err) {
		return s.tr.T(i18n.SessionExpired)
	}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		return s.tr.T(i18n.EmailCartFailed)
	}
	msg := strings.ToLower(apiErr.Message)
	if apiErr.Details != nil {
		msg += " " + strings.ToLower(fmt.Sprint(apiErr.Details))
	}
	switch {
	case strings.Contains(msg, "empty"):
		return s.tr.T(i18n.EmptyCart)
	case strings.Contains(msg, "email"):
		return s.tr.T(i18n.InvalidEmail)
	default:
		return s.tr.T(i18n.EmailCartFailed)
	}
}

// ResetEmailState clears the email-for-later slice.
func (s *Store) ResetEmailState() {
	s.update(func(st *State) {
		st.EmailLoading = false
		st.EmailSuccess = false
		st.EmailError = ""
	})
}

// ClearCart forgets the session, the badge counter and all cart state. Used on
// sign-out so the next visitor does not inherit this cart.
func (s *Store) ClearCart(ctx context.Context) {
	if err := s.sessions.ClearSession(ctx); err != nil {
		s.logger.Error().Err(err).Msg("clear session")
	}
	if s.counter != nil {
		if err := s.counter.Reset(ctx); err != nil {
			s.logger.Error().Err(err).Msg("reset cart item count")
		}
	}
	s.update(func(st *State) { *st = initialState() })
}

func (s *Store) RelatedProducts(ctx context.Context) ([]domain.RelatedProduct, error) {
	return s.gateway.GetRelatedProducts(ctx)
}
