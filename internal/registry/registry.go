package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/storefront-cart/internal/app/service"
	"github.com/ikkim/storefront-cart/internal/cache"
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/events"
	"github.com/ikkim/storefront-cart/internal/gateway"
	"github.com/ikkim/storefront-cart/internal/search"
	"github.com/ikkim/storefront-cart/internal/session"
	"github.com/ikkim/storefront-cart/internal/websocket"
	"github.com/ikkim/storefront-cart/pkg/logger"
)

// Broadcaster pushes a message to every open connection of a client.
type Broadcaster interface {
	SendToClient(clientID string, message interface{}) error
}

// Session is everything the server holds for one browser.
type Session struct {
	ClientID string
	Identity *session.Identity
	Store    *cart.Store
	Gateway  *gateway.Client
	Carts    service.CartService
	Auth     *service.AuthCoordinator
	Search   *search.Debouncer[json.RawMessage]

	mu          sync.Mutex
	lastSeen    time.Time
	unsubscribe func()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen is when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type Options struct {
	Gateway     gateway.Config
	Tokens      session.TokenStore
	Cache       cache.SnapshotCache
	Publisher   events.Publisher
	Broadcaster Broadcaster
	SearchDelay time.Duration
}

// Registry owns the sessions of all clients, created lazily by client id.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func New(opts Options) *Registry {
	if opts.Tokens == nil {
		opts.Tokens = session.NewMemoryTokenStore()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache(cache.DefaultTTL)
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	return &Registry{
		opts:     opts,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session of clientID, creating it on first use.
func (r *Registry) Get(clientID, userAgent string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[clientID]; ok {
		s.touch(r.now())
		return s, nil
	}

	s, err := r.newSession(clientID, userAgent)
	if err != nil {
		return nil, err
	}
	s.touch(r.now())
	r.sessions[clientID] = s

	logger.Info("Cart session created", map[string]interface{}{
		"client_id": clientID,
		"sessions":  len(r.sessions),
	})
	return s, nil
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(clientID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

func (r *Registry) newSession(clientID, userAgent string) (*Session, error) {
	identity := session.NewIdentity(r.opts.Tokens, clientID, userAgent)
	client, err := gateway.NewClient(r.opts.Gateway, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart gateway: %w", err)
	}
	store := cart.NewStore()

	s := &Session{
		ClientID: clientID,
		Identity: identity,
		Store:    store,
		Gateway:  client,
		Search:   search.NewDebouncer[json.RawMessage](r.opts.SearchDelay, client.SearchProducts),
	}

	var notifier service.Notifier
	if b := r.opts.Broadcaster; b != nil {
		notifier = service.NotifierFunc(func(n service.Notification) {
			_ = b.SendToClient(clientID, websocket.Message{Type: websocket.TypeToast, Payload: n})
		})
		s.unsubscribe = store.Subscribe(func(state cart.State) {
			_ = b.SendToClient(clientID, websocket.Message{Type: websocket.TypeCartState, Payload: state})
		})
	}

	s.Carts = service.NewCartService(service.CartServiceDeps{
		ClientID:  clientID,
		Store:     store,
		Gateway:   client,
		Cache:     r.opts.Cache,
		Notifier:  notifier,
		Publisher: r.opts.Publisher,
		Scope:     identity.Scope,
	})
	s.Auth = service.NewAuthCoordinator(identity, s.Carts, store)
	return s, nil
}

// Sweep evicts sessions idle for at least idle and returns how many were
// dropped. Persisted session tokens and snapshots are kept, so a returning
// browser picks up the same anonymous cart.
func (r *Registry) Sweep(_ context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if !s.LastSeen().After(cutoff) {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, s := range evicted {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	}

	if len(evicted) > 0 {
		logger.Info("Evicted idle cart sessions", map[string]interface{}{
			"evicted":   len(evicted),
			"remaining": remaining,
		})
	}
	return len(evicted)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
