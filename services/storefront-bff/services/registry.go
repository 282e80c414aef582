package services

import (
	"context"
	"sync"
	"time"

	"github.com/jewelrybyluna/storefront/services/common/auth"
	"go.uber.org/zap"
)

// Storefront bundles the per-shopper cart, checkout and toast surface.
type Storefront struct {
	UserID   string
	Session  *auth.TokenSession
	Cart     *CartStore
	Checkout *CheckoutOrchestrator
	Toasts   *ToastNotifier

	mu       sync.Mutex
	lastSeen time.Time
}

// Close cancels pending quantity writes and the toast timer.
func (s *Storefront) Close() {
	s.Cart.Close()
	s.Toasts.Close()
}

func (s *Storefront) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Storefront) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Dependencies are shared by every storefront. The API constructors bind a remote client
// to one shopper's session.
type Dependencies struct {
	NewCartAPI  func(session auth.Session) CartAPI
	NewOrderAPI func(session auth.Session) OrderAPI

	Pricing     *PricingEngine
	Payments    *PaymentCatalog
	Opener      LinkOpener
	Snapshots   SnapshotStore
	Idempotency IdempotencyStore
	Events      EventPublisher

	QuantityDebounce time.Duration
	ToastDuration    time.Duration
	LoginPath        string
	Logger           *zap.Logger
}

// Registry holds one Storefront per signed-in user and evicts idle ones.
type Registry struct {
	mu          sync.Mutex
	storefronts map[string]*Storefront
	deps        Dependencies
	idleTTL     time.Duration
	now         func() time.Time
}

func NewRegistry(deps Dependencies, idleTTL time.Duration) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Registry{
		storefronts: make(map[string]*Storefront),
		deps:        deps,
		idleTTL:     idleTTL,
		now:         time.Now,
	}
}

// Acquire returns the user's storefront, creating it on first use. The token is swapped
// in on every call so the session follows refreshed credentials.
func (r *Registry) Acquire(user auth.User, token string) *Storefront {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if sf, ok := r.storefronts[user.ID]; ok {
		if sf.Session.Token() != token {
			sf.Session.SetToken(token)
		}
		sf.touch(now)
		return sf
	}

	sf := r.build(user, token)
	sf.touch(now)
	r.storefronts[user.ID] = sf
	r.deps.Logger.Debug("storefront created", zap.String("user_id", user.ID))
	return sf
}

// Get returns the storefront for userID without creating one.
func (r *Registry) Get(userID string) (*Storefront, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sf, ok := r.storefronts[userID]
	return sf, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.storefronts)
}

// EvictIdle closes and forgets storefronts not touched since now - idleTTL.
func (r *Registry) EvictIdle(now time.Time) int {
	r.mu.Lock()
	var idle []*Storefront
	for id, sf := range r.storefronts {
		if now.Sub(sf.idleSince()) >= r.idleTTL {
			idle = append(idle, sf)
			delete(r.storefronts, id)
		}
	}
	r.mu.Unlock()

	for _, sf := range idle {
		sf.Close()
		r.deps.Logger.Debug("storefront evicted", zap.String("user_id", sf.UserID))
	}
	return len(idle)
}

// Run evicts idle storefronts until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.EvictIdle(now); n > 0 {
				r.deps.Logger.Info("evicted idle storefronts", zap.Int("count", n))
			}
		}
	}
}

// Close shuts every storefront down.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.storefronts
	r.storefronts = make(map[string]*Storefront)
	r.mu.Unlock()

	for _, sf := range all {
		sf.Close()
	}
}

func (r *Registry) build(user auth.User, token string) *Storefront {
	d := r.deps
	logger := d.Logger.With(zap.String("user_id", user.ID))
	session := auth.NewTokenSession(token)
	toasts := NewToastNotifier(d.ToastDuration, logger)

	cartOpts := []CartStoreOption{}
	if d.QuantityDebounce > 0 {
		cartOpts = append(cartOpts, WithQuantityDebounce(d.QuantityDebounce))
	}
	if d.Snapshots != nil {
		cartOpts = append(cartOpts, WithSnapshots(d.Snapshots))
	}
	cart := NewCartStore(d.NewCartAPI(session), session, toasts, logger, cartOpts...)

	checkoutOpts := []CheckoutOption{}
	if d.Idempotency != nil {
		checkoutOpts = append(checkoutOpts, WithIdempotency(d.Idempotency))
	}
	if d.Events != nil {
		checkoutOpts = append(checkoutOpts, WithEventPublisher(d.Events))
	}
	if d.LoginPath != "" {
		checkoutOpts = append(checkoutOpts, WithLoginPath(d.LoginPath))
	}
	checkout := NewCheckoutOrchestrator(
		d.NewOrderAPI(session), cart, d.Pricing, d.Payments, session, toasts, d.Opener, logger,
		checkoutOpts...,
	)

	return &Storefront{
		UserID:   user.ID,
		Session:  session,
		Cart:     cart,
		Checkout: checkout,
		Toasts:   toasts,
	}
}
