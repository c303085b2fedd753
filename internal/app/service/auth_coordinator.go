package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/session"
	"github.com/ikkim/storefront-cart/pkg/logger"
)

// AuthCoordinator watches one client's authentication state and keeps the
// cart consistent across login and logout.
//
//	login   migrate the anonymous cart, then refresh
//	logout  drop the user's cart, restore an anonymous identity, refresh
//
// Only transitions trigger work; repeating the same state is a no-op.
type AuthCoordinator struct {
	identity *session.Identity
	carts    CartService
	store    *cart.Store
	now      func() time.Time

	mu            sync.Mutex
	started       bool
	authenticated bool

	loggingIn  atomic.Bool
	loggingOut atomic.Bool
}

func NewAuthCoordinator(identity *session.Identity, carts CartService, store *cart.Store) *AuthCoordinator {
	return &AuthCoordinator{
		identity: identity,
		carts:    carts,
		store:    store,
		now:      time.Now,
	}
}

// Start records the initial auth state and loads the cart once, whatever that
// state is. Later calls do nothing.
func (a *AuthCoordinator) Start(ctx context.Context, bearer string) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.authenticated = a.applyBearer(bearer)
	a.mu.Unlock()

	if err := a.identity.Init(ctx); err != nil {
		logger.Warn("Failed to initialize session token", map[string]interface{}{
			"error": err.Error(),
		})
	}
	a.carts.RefreshCart(ctx)
}

// Authenticated reports the last observed auth state.
func (a *AuthCoordinator) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticated
}

// Observe feeds the bearer seen on the current request. An empty or expired
// bearer means logged out.
func (a *AuthCoordinator) Observe(ctx context.Context, bearer string) {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		a.Start(ctx, bearer)
		return
	}
	was := a.authenticated
	now := a.applyBearer(bearer)
	a.authenticated = now
	a.mu.Unlock()

	switch {
	case !was && now:
		a.onLogin(ctx)
	case was && !now:
		a.onLogout(ctx)
	}
}

// applyBearer stores the usable bearer on the identity and reports whether
// it authenticates. Callers hold a.mu.
func (a *AuthCoordinator) applyBearer(bearer string) bool {
	info := session.InspectBearer(bearer, a.now())
	if !info.Authenticated {
		a.identity.SetBearer("")
		return false
	}
	a.identity.SetBearer(strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer ")))
	return true
}

func (a *AuthCoordinator) onLogin(ctx context.Context) {
	if !a.loggingIn.CompareAndSwap(false, true) {
		logger.Debug("Login transition already running, skipping", nil)
		return
	}
	defer a.loggingIn.Store(false)

	logger.Info("User logged in, reconciling cart", nil)
	a.carts.MigrateCart(ctx)
	a.carts.RefreshCart(ctx)
}

func (a *AuthCoordinator) onLogout(ctx context.Context) {
	if !a.loggingOut.CompareAndSwap(false, true) {
		logger.Debug("Logout transition already running, skipping", nil)
		return
	}
	defer a.loggingOut.Store(false)

	logger.Info("User logged out, restoring anonymous cart", nil)
	a.store.Dispatch(cart.ClearCart())
	if err := a.identity.Init(ctx); err != nil {
		logger.Warn("Failed to restore session token after logout", map[string]interface{}{
			"error": err.Error(),
		})
	}
	a.carts.RefreshCart(ctx)
}
