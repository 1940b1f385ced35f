package shopper

import (
	"context"
	"net/http"
	"sync"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/i18n"
	"storefront/internal/notify"
	"storefront/internal/quantity"
	"storefront/internal/repository/clientstate"
	"storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	"storefront/internal/service/session"

	"github.com/rs/zerolog"
)

const (
	toastCapacity = 20
	botVisitorID  = "bot"
)

type Options struct {
	BackendBaseURL string
	HTTPClient     *http.Client
	Locale         string
	ShareBaseURL   string
	IdleTTL        time.Duration
	QuantityDelay  time.Duration
}

// Client describes the browser a visitor arrives with.
type Client struct {
	UserAgent   string
	Fingerprint string
}

// Registry lazily builds one Shopper per visitor id and evicts idle ones.
type Registry struct {
	mu       sync.Mutex
	shoppers map[string]*Shopper
	// bot serves every crawler request from throwaway in-memory state.
	bot      *Shopper

	repo    clientstate.Repository
	opts    Options
	logger  zerolog.Logger
	nowFunc func() time.Time
}

func NewRegistry(repo clientstate.Repository, opts Options, logger zerolog.Logger) *Registry {
	if opts.QuantityDelay <= 0 {
		opts.QuantityDelay = quantity.DefaultDelay
	}
	return &Registry{
		shoppers: make(map[string]*Shopper),
		repo:     repo,
		opts:     opts,
		logger:   logger.With().Str("component", "registry").Logger(),
		nowFunc:  time.Now,
	}
}

// Get returns the visitor's Shopper, building it on first sight. Crawlers
// all share one Shopper that never touches durable storage.
func (r *Registry) Get(ctx context.Context, visitorID string, client Client) *Shopper {
	if gateway.IsBot(client.UserAgent) {
		return r.botShopper(ctx, client)
	}
	now := r.nowFunc()
	r.mu.Lock()
	if s, ok := r.shoppers[visitorID]; ok {
		r.mu.Unlock()
		s.touch(now)
		return s
	}
	r.mu.Unlock()

	built := r.build(ctx, r.repo, visitorID, client)
	built.touch(now)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shoppers[visitorID]; ok {
		built.close()
		return s
	}
	r.shoppers[visitorID] = built
	return built
}

func (r *Registry) botShopper(ctx context.Context, client Client) *Shopper {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bot == nil {
		r.bot = r.build(ctx, clientstate.NewMemory(), botVisitorID, client)
	}
	return r.bot
}

func (r *Registry) build(ctx context.Context, repo clientstate.Repository, visitorID string, client Client) *Shopper {
	logger := r.logger.With().Str("visitor", visitorID).Logger()
	storage := clientstate.Scope(repo, visitorID)
	tr := i18n.New(r.opts.Locale)
	toasts := notify.NewQueue(toastCapacity)

	sessions := session.NewManager(ctx, storage, logger)
	gw := gateway.New(gateway.Options{
		BaseURL:     r.opts.BackendBaseURL,
		HTTPClient:  r.opts.HTTPClient,
		UserAgent:   client.UserAgent,
		Fingerprint: client.Fingerprint,
		Logger:      logger,
	}, sessions)
	counter := clientstate.NewItemCounter(storage)
	store := cart.New(gw, sessions, counter, toasts, tr, logger)
	machine := checkout.New(gw, store, toasts, tr, logger)

	profile := clientstate.NewProfileCache(storage)
	if p, err := profile.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("load cached profile")
	} else if p != nil {
		machine.SetProfile(p)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Shopper{
		ID:            visitorID,
		Sessions:      sessions,
		Gateway:       gw,
		Cart:          store,
		Checkout:      machine,
		Promo:         cart.NewPromoCodes(store),
		Toasts:        toasts,
		Counter:       counter,
		Profile:       profile,
		shareBaseURL:  r.opts.ShareBaseURL,
		quantityDelay: r.opts.QuantityDelay,
		logger:        logger,
		ctx:           sctx,
		cancel:        cancel,
		controls:      make(map[string]*quantity.Control),
	}
	store.Subscribe(s.syncControls)
	logger.Debug().Bool("bot", gw.IsBot()).Msg("shopper created")
	return s
}

// EvictIdle drops shoppers not seen for the idle TTL and returns how many
// were removed. Their durable state stays in storage.
func (r *Registry) EvictIdle() int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.nowFunc().Add(-r.opts.IdleTTL)
	var evicted []*Shopper
	r.mu.Lock()
	for id, s := range r.shoppers {
		if s.idleSince().Before(cutoff) {
			evicted = append(evicted, s)
			delete(r.shoppers, id)
		}
	}
	r.mu.Unlock()
	for _, s := range evicted {
		s.close()
	}
	if len(evicted) > 0 {
		r.logger.Info().Int("evicted", len(evicted)).Msg("evicted idle shoppers")
	}
	return len(evicted)
}

// Run evicts idle shoppers every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shoppers)
}

// Ping checks the durable storage behind every shopper.
func (r *Registry) Ping(ctx context.Context) error {
	return r.repo.Ping(ctx)
}

// Close releases every shopper, cancelling pending quantity commits.
func (r *Registry) Close() {
	r.mu.Lock()
	shoppers := r.shoppers
	r.shoppers = make(map[string]*Shopper)
	bot := r.bot
	r.bot = nil
	r.mu.Unlock()
	for _, s := range shoppers {
		s.close()
	}
	if bot != nil {
		bot.close()
	}
}
