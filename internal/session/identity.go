package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/storefront-cart/pkg/logger"
)

// Identity is the set of credentials attached to every cart request of one
// client: an anonymous session token and, once logged in, a bearer token.
//
// Lifecycle of the session token:
//
//	Init     read the persisted token, or generate and persist one
//	Adopt    replace it when the backend hands out a new one
//	Discard  drop it after the cart was migrated to the user
//	Reset    forget everything (eviction and tests)
//
// A token is never regenerated while one exists, and a discarded token is
// never adopted again.
type Identity struct {
	mu        sync.RWMutex
	store     TokenStore
	key       string
	userAgent string
	token     string
	bearer    string
	discarded map[string]struct{}
	now       func() time.Time
}

func NewIdentity(store TokenStore, key, userAgent string) *Identity {
	return &Identity{
		store:     store,
		key:       key,
		userAgent: userAgent,
		discarded: make(map[string]struct{}),
		now:       time.Now,
	}
}

// Init makes sure a session token is loaded, generating one if the store has
// none.
func (i *Identity) Init(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.token != "" {
		return nil
	}

	token, err := i.store.Load(ctx, i.key)
	switch {
	case err == nil:
		if _, gone := i.discarded[token]; !gone {
			i.token = token
			return nil
		}
	case !errors.Is(err, ErrTokenNotFound):
		return fmt.Errorf("failed to read session token: %w", err)
	}

	token = NewToken(i.now(), i.userAgent)
	if err := i.store.Save(ctx, i.key, token); err != nil {
		return err
	}
	i.token = token
	logger.Debug("Generated anonymous session token", map[string]interface{}{
		"client_id": i.key,
	})
	return nil
}

// Token returns the current session token, "" when none is held.
func (i *Identity) Token() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token
}

func (i *Identity) Bearer() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.bearer
}

// Scope names whose cart the identity currently sees: the bearer's subject
// once logged in, the anonymous session token otherwise.
func (i *Identity) Scope() string {
	i.mu.RLock()
	bearer, token := i.bearer, i.token
	i.mu.RUnlock()

	if bearer != "" {
		if sub := InspectBearer(bearer, i.now()).Subject; sub != "" {
			return "user:" + sub
		}
		return "user:" + Fingerprint(bearer)
	}
	if token != "" {
		return "anon:" + token
	}
	return "anon"
}

func (i *Identity) SetBearer(bearer string) {
	i.mu.Lock()
	i.bearer = bearer
	i.mu.Unlock()
}

// Adopt replaces the session token with one issued by the backend. It
// reports whether the stored token changed.
func (i *Identity) Adopt(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if token == i.token {
		return false
	}
	if _, gone := i.discarded[token]; gone {
		return false
	}

	i.token = token
	if err := i.store.Save(ctx, i.key, token); err != nil {
		logger.Warn("Failed to persist session token from backend", map[string]interface{}{
			"client_id": i.key,
			"error":     err.Error(),
		})
	}
	return true
}

// Discard drops the anonymous token so it is never sent again.
func (i *Identity) Discard(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.token != "" {
		i.discarded[i.token] = struct{}{}
	}
	i.token = ""
	return i.store.Delete(ctx, i.key)
}

// Reset forgets both tokens and the persisted session token.
func (i *Identity) Reset(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.token = ""
	i.bearer = ""
	i.discarded = make(map[string]struct{})
	return i.store.Delete(ctx, i.key)
}
