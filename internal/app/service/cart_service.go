package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/storefront-cart/internal/cache"
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/events"
	"github.com/ikkim/storefront-cart/internal/gateway"
	"github.com/ikkim/storefront-cart/pkg/logger"
)

const (
	msgAdded        = "Product added to cart"
	msgUnexpected   = "Something went wrong with your cart. Please try again."
	publishTimeout  = 2 * time.Second
	snapshotTimeout = time.Second
)

// CartGateway is the part of the backend client the cart service needs.
type CartGateway interface {
	GetCart(ctx context.Context) (*gateway.Response, error)
	AddToCart(ctx context.Context, line cart.Line, quantity int) (*gateway.Response, error)
	UpdateQuantity(ctx context.Context, line cart.Line, quantity int) (*gateway.Response, error)
	RemoveFromCart(ctx context.Context, line cart.Line) (*gateway.Response, error)
	ClearCart(ctx context.Context) error
	MigrateCart(ctx context.Context) (*gateway.Response, error)
}

// CartService runs every cart operation of one client. Methods never return
// errors: results and failures land in the store, and user-facing failures
// are also sent to the Notifier.
//
// Mutations are confirm-then-display. Two mutations issued back to back race
// at the network layer and the last response to arrive wins; a later
// RefreshCart corrects any drift.
type CartService interface {
	AddToCart(ctx context.Context, line cart.Line, quantity int)
	// UpdateQuantity sets the quantity of line. Any quantity below 1 removes
	// the line instead; no update with a zero quantity is ever sent.
	UpdateQuantity(ctx context.Context, line cart.Line, quantity int)
	RemoveFromCart(ctx context.Context, line cart.Line)
	ClearCart(ctx context.Context)
	RefreshCart(ctx context.Context)
	MigrateCart(ctx context.Context)
}

type CartServiceDeps struct {
	ClientID  string
	Store     *cart.Store
	Gateway   CartGateway
	Cache     cache.SnapshotCache
	Notifier  Notifier
	Publisher events.Publisher
	// Scope keys the snapshot by identity so one user's cart is never
	// restored for another. Nil keys it by client only.
	Scope func() string
}

type cartService struct {
	clientID  string
	store     *cart.Store
	gateway   CartGateway
	cache     cache.SnapshotCache
	notifier  Notifier
	publisher events.Publisher
	scope     func() string
	log       *logger.Logger
}

func NewCartService(deps CartServiceDeps) CartService {
	s := &cartService{
		clientID:  deps.ClientID,
		store:     deps.Store,
		gateway:   deps.Gateway,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		scope:     deps.Scope,
		log:       logger.WithContext(map[string]interface{}{"client_id": deps.ClientID}),
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryCache(cache.DefaultTTL)
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	return s
}

// run brackets one operation: loading first, then exactly one terminal
// action, even if fn panics.
func (s *cartService) run(op string, fn func() cart.Action) {
	s.store.Dispatch(cart.SetLoading(true))

	action := cart.SetErrorMessage(msgUnexpected)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Cart operation panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"operation": op,
			})
			s.notifier.Notify(Notification{Level: LevelError, Message: msgUnexpected})
		}
		s.store.Dispatch(action)
	}()

	action = fn()
}

func (s *cartService) AddToCart(ctx context.Context, line cart.Line, quantity int) {
	s.run("add_to_cart", func() cart.Action {
		s.log.Info("Adding item to cart", map[string]interface{}{
			"product_id": line.ProductID,
			"variant_id": line.VariantID,
			"size_id":    line.SizeID,
			"quantity":   quantity,
		})

		resp, err := s.gateway.AddToCart(ctx, line, quantity)
		if err != nil {
			return s.fail("add_to_cart", err, true)
		}

		s.confirm(ctx, events.ItemAdded, line, quantity, resp)
		s.notifier.Notify(Notification{Level: LevelSuccess, Message: msgAdded})
		return applyResponse(resp)
	})
}

func (s *cartService) UpdateQuantity(ctx context.Context, line cart.Line, quantity int) {
	if quantity < 1 {
		s.log.Debug("Quantity below 1, removing line instead", map[string]interface{}{
			"product_id": line.ProductID,
			"quantity":   quantity,
		})
		s.RemoveFromCart(ctx, line)
		return
	}

	s.run("update_quantity", func() cart.Action {
		s.log.Info("Updating cart quantity", map[string]interface{}{
			"product_id": line.ProductID,
			"variant_id": line.VariantID,
			"size_id":    line.SizeID,
			"quantity":   quantity,
		})

		resp, err := s.gateway.UpdateQuantity(ctx, line, quantity)
		if err != nil {
			return s.fail("update_quantity", err, true)
		}

		s.confirm(ctx, events.ItemUpdated, line, quantity, resp)
		return applyResponse(resp)
	})
}

func (s *cartService) RemoveFromCart(ctx context.Context, line cart.Line) {
	s.run("remove_from_cart", func() cart.Action {
		s.log.Info("Removing item from cart", map[string]interface{}{
			"product_id": line.ProductID,
			"variant_id": line.VariantID,
			"size_id":    line.SizeID,
		})

		resp, err := s.gateway.RemoveFromCart(ctx, line)
		if err != nil {
			return s.fail("remove_from_cart", err, true)
		}

		s.confirm(ctx, events.ItemRemoved, line, 0, resp)
		return applyResponse(resp)
	})
}

func (s *cartService) ClearCart(ctx context.Context) {
	s.run("clear_cart", func() cart.Action {
		s.log.Info("Clearing cart", nil)

		err := s.gateway.ClearCart(ctx)
		if err != nil && !gateway.IsCartAbsent(err) {
			return s.fail("clear_cart", err, true)
		}

		s.dropSnapshot(ctx)
		s.publish(ctx, events.Event{Type: events.Cleared})
		return cart.ClearCart()
	})
}

func (s *cartService) RefreshCart(ctx context.Context) {
	s.run("refresh_cart", func() cart.Action {
		resp, err := s.gateway.GetCart(ctx)
		switch {
		case err == nil && !resp.Empty:
			s.saveSnapshot(ctx, resp.Cart)
			return cart.SetCart(resp.Cart, false)
		case err == nil, gateway.IsCartAbsent(err):
			s.dropSnapshot(ctx)
			return cart.ClearCart()
		}

		snapshot, cacheErr := s.cache.Get(ctx, s.snapshotKey())
		if cacheErr == nil {
			s.log.Warn("Backend unavailable, showing last known cart", map[string]interface{}{
				"error": err.Error(),
			})
			return cart.SetCart(snapshot, true)
		}
		if !errors.Is(cacheErr, cache.ErrMiss) {
			s.log.Warn("Failed to read cart snapshot", map[string]interface{}{
				"error": cacheErr.Error(),
			})
		}
		return s.fail("refresh_cart", err, false)
	})
}

// MigrateCart hands the anonymous cart to the logged-in user. Failures are
// logged and otherwise ignored; callers refresh afterwards.
func (s *cartService) MigrateCart(ctx context.Context) {
	s.run("migrate_cart", func() cart.Action {
		s.log.Info("Migrating anonymous cart to user", nil)

		resp, err := s.gateway.MigrateCart(ctx)
		if err != nil {
			s.log.Warn("Cart migration failed, continuing with refresh", map[string]interface{}{
				"error": err.Error(),
			})
			// Settle loading without surfacing the failure.
			return cart.SetError(s.store.State().Error)
		}

		s.confirm(ctx, events.Migrated, cart.Line{}, 0, resp)
		return applyResponse(resp)
	})
}

func applyResponse(resp *gateway.Response) cart.Action {
	if resp == nil || resp.Empty {
		return cart.ClearCart()
	}
	return cart.SetCart(resp.Cart, false)
}

// fail logs err and turns it into the terminal error action.
func (s *cartService) fail(op string, err error, notify bool) cart.Action {
	msg := gateway.Message(err)
	s.log.Error("Cart operation failed", err, map[string]interface{}{
		"operation": op,
	})
	if notify {
		s.notifier.Notify(Notification{Level: LevelError, Message: msg})
	}
	return cart.SetErrorMessage(msg)
}

// confirm records a mutation the backend accepted: the fresh payload
// replaces the fallback snapshot and an activity event goes out.
func (s *cartService) confirm(ctx context.Context, typ events.Type, line cart.Line, quantity int, resp *gateway.Response) {
	event := events.Event{
		Type:      typ,
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		SizeID:    line.SizeID,
		Quantity:  quantity,
	}
	if resp != nil && !resp.Empty {
		s.saveSnapshot(ctx, resp.Cart)
		normalized := cart.Normalize(resp.Cart)
		event.CartID = normalized.ID
		event.TotalFinal = normalized.TotalFinal
	} else {
		s.dropSnapshot(ctx)
	}
	s.publish(ctx, event)
}

// snapshotKey is the client id, suffixed with the identity scope when known.
func (s *cartService) snapshotKey() string {
	if s.scope == nil {
		return s.clientID
	}
	if scope := s.scope(); scope != "" {
		return s.clientID + "|" + scope
	}
	return s.clientID
}

func (s *cartService) saveSnapshot(ctx context.Context, raw *cart.RawCart) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()
	if err := s.cache.Set(ctx, s.snapshotKey(), raw); err != nil {
		s.log.Warn("Failed to store cart snapshot", map[string]interface{}{"error": err.Error()})
	}
}

func (s *cartService) dropSnapshot(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, s.snapshotKey()); err != nil {
		s.log.Warn("Failed to drop cart snapshot", map[string]interface{}{"error": err.Error()})
	}
}

func (s *cartService) publish(ctx context.Context, event events.Event) {
	event.ClientID = s.clientID
	event.OccurredAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish cart event", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
	}
}
