package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openstall/stallpos/internal/bus"
	"github.com/openstall/stallpos/internal/store"
)

// Backoff bounds for sync retries.
const (
	DefaultBackoff = 1 * time.Second
	MaxBackoff     = 30 * time.Second
)

// Engine owns the local store's domain collections, maintains the outbox of
// pending mutations, and runs the sync protocol against the remote endpoint.
//
// All guards (single-flight sync flag, backoff state, retry timer) are owned
// by the instance, so multiple engines never interfere.
type Engine struct {
	store    *store.Store
	bus      *bus.Bus
	remote   Remote
	deviceID string

	ids IDGenerator
	now func() time.Time

	online   atomic.Bool
	inFlight atomic.Bool

	backoffMu  sync.Mutex
	backoff    time.Duration
	baseDelay  time.Duration
	maxDelay   time.Duration
	retryTimer *time.Timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the UUIDv7 id generator.
// Tests use this with a SequenceGenerator for deterministic ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock replaces the wall clock used for updatedAt stamps and
// mutation timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithBackoff overrides the retry backoff bounds.
func WithBackoff(base, max time.Duration) Option {
	return func(e *Engine) {
		e.baseDelay = base
		e.maxDelay = max
		e.backoff = base
	}
}

// New creates an Engine on the shared store. The engine starts online;
// call SetOnline(false) for terminals that boot disconnected.
func New(s *store.Store, b *bus.Bus, remote Remote, deviceID string, opts ...Option) *Engine {
	e := &Engine{
		store:     s,
		bus:       b,
		remote:    remote,
		deviceID:  deviceID,
		ids:       UUIDv7Generator{},
		now:       time.Now,
		backoff:   DefaultBackoff,
		baseDelay: DefaultBackoff,
		maxDelay:  MaxBackoff,
	}
	e.online.Store(true)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close cancels any pending sync retry. In-flight syncs are not interrupted.
func (e *Engine) Close() {
	e.backoffMu.Lock()
	defer e.backoffMu.Unlock()
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

// Online reports whether the engine currently believes the device is online.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// SetOnline records connectivity. A transition from offline to online is
// the reconnect signal and triggers a sync pass.
func (e *Engine) SetOnline(online bool) {
	was := e.online.Swap(online)
	if !was && online {
		e.TriggerSync()
	}
}

// CreateOrder persists the order and all its items in one transaction,
// queues a createWithItems mutation and announces the change. The sync
// trigger is opportunistic; the caller never waits on it.
//
// An absent order id is generated, an absent status defaults to pending.
func (e *Engine) CreateOrder(ctx context.Context, draft Order, items []OrderItem) (Order, error) {
	now := e.now().UTC().Format(time.RFC3339)

	order := draft
	if order.ID == "" {
		order.ID = e.ids.NewID()
	}
	if order.Status == "" {
		order.Status = StatusPending
	}
	order.UpdatedAt = now
	order.DeviceID = e.deviceID

	withMeta := make([]OrderItem, len(items))
	for i, item := range items {
		item.OrderID = order.ID
		if item.ID == "" {
			item.ID = e.ids.NewID()
		}
		item.UpdatedAt = now
		item.DeviceID = e.deviceID
		withMeta[i] = item
	}

	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.Put(ctx, "orders", order.ID, order); err != nil {
			return err
		}
		for _, item := range withMeta {
			if err := tx.Put(ctx, "orderItems", item.ID, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	if _, err := e.QueueMutation(ctx, "orders", OpCreateWithItems, createWithItemsEntity{
		Order: order,
		Items: withMeta,
	}); err != nil {
		return Order{}, err
	}

	e.bus.Publish(bus.OrdersChanged, order)
	return order, nil
}

// UpdateOrderStatus overwrites the order's status and queues an
// updateStatus mutation. Returns (nil, nil) when the order does not exist;
// nothing is written in that case.
//
// No transition validation is performed: any status string is accepted,
// matching the permissive store contract.
func (e *Engine) UpdateOrderStatus(ctx context.Context, orderID, status string) (*Order, error) {
	var order Order
	err := e.store.Get(ctx, "orders", orderID, &order)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	order.Status = status
	order.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	order.DeviceID = e.deviceID

	if err := e.store.Put(ctx, "orders", order.ID, order); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if _, err := e.QueueMutation(ctx, "orders", OpUpdateStatus, updateStatusEntity{
		ID:        orderID,
		Status:    status,
		UpdatedAt: order.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	e.bus.Publish(bus.OrdersChanged, order)
	return &order, nil
}

// ListOrders returns all orders, most recently updated first. Comparison is
// lexicographic on the RFC3339 updatedAt stamp; orders without one sort last.
func (e *Engine) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := e.store.GetAll(ctx, "orders", &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[j].UpdatedAt < orders[i].UpdatedAt
	})
	return orders, nil
}

// GetOrder returns one order by id, or nil when it does not exist.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := e.store.Get(ctx, "orders", orderID, &order)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &order, nil
}

// OrderItemsFor returns the items belonging to an order via the orderId index.
func (e *Engine) OrderItemsFor(ctx context.Context, orderID string) ([]OrderItem, error) {
	var items []OrderItem
	if err := e.store.GetAllByIndex(ctx, "orderItems", "orderId", orderID, &items); err != nil {
		return nil, fmt.Errorf("order items for %s: %w", orderID, err)
	}
	return items, nil
}

// MenuItems returns the full catalog.
func (e *Engine) MenuItems(ctx context.Context) ([]MenuItem, error) {
	var items []MenuItem
	if err := e.store.GetAll(ctx, "menuItems", &items); err != nil {
		return nil, fmt.Errorf("menu items: %w", err)
	}
	return items, nil
}

// SeedMenu writes the given catalog only when the menuItems collection is
// empty. Returns true when seeding happened.
func (e *Engine) SeedMenu(ctx context.Context, items []MenuItem) (bool, error) {
	existing, err := e.MenuItems(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	err = e.store.Update(ctx, func(tx *store.Tx) error {
		for _, item := range items {
			if err := tx.Put(ctx, "menuItems", item.ID, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed menu: %w", err)
	}
	return true, nil
}

// QueueMutation appends a mutation to the outbox, announces it, and - when
// the device believes it is online - triggers a sync pass without waiting.
func (e *Engine) QueueMutation(ctx context.Context, collection, op string, entity any) (Mutation, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return Mutation{}, fmt.Errorf("encode mutation entity: %w", err)
	}

	m := Mutation{
		ID:         e.ids.NewID(),
		Collection: collection,
		Op:         op,
		Entity:     raw,
		DeviceID:   e.deviceID,
		TS:         e.now().UnixMilli(),
	}

	if err := e.store.Put(ctx, "outbox", m.ID, m); err != nil {
		return Mutation{}, fmt.Errorf("queue mutation: %w", err)
	}

	e.bus.Publish(bus.OutboxQueued, m)

	if e.online.Load() {
		e.TriggerSync()
	}
	return m, nil
}
