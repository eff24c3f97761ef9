package pos

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstall/stallpos/internal/bus"
	"github.com/openstall/stallpos/internal/store"
)

// fakeRemote counts protocol calls and lets tests script acknowledgments,
// failures and pulled change sets.
type fakeRemote struct {
	mu        sync.Mutex
	pushCalls int
	pullCalls int
	pushed    [][]Mutation
	lastSince int64

	ack     func(mutations []Mutation) []string
	pushErr error
	pullErr error
	ts      int64
	changes ChangeSet

	pullEntered chan struct{} // closed-once signal that a pull started
	pullGate    chan struct{} // when set, pull blocks until closed
}

func (f *fakeRemote) PushMutations(_ context.Context, mutations []Mutation) ([]string, error) {
	f.mu.Lock()
	f.pushCalls++
	f.pushed = append(f.pushed, mutations)
	ack := f.ack
	err := f.pushErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ack != nil {
		return ack(mutations), nil
	}
	ids := make([]string, len(mutations))
	for i, m := range mutations {
		ids[i] = m.ID
	}
	return ids, nil
}

func (f *fakeRemote) FetchChanges(_ context.Context, since int64) (int64, ChangeSet, error) {
	f.mu.Lock()
	f.pullCalls++
	f.lastSince = since
	entered := f.pullEntered
	gate := f.pullGate
	err := f.pullErr
	ts := f.ts
	changes := f.changes
	f.mu.Unlock()

	if entered != nil {
		select {
		case <-entered:
		default:
			close(entered)
		}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return 0, ChangeSet{}, err
	}
	return ts, changes, nil
}

func (f *fakeRemote) counts() (push, pull int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushCalls, f.pullCalls
}

func newTestEngine(t *testing.T, remote Remote, opts ...Option) (*Engine, *store.Store, *bus.Bus) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := bus.New()
	e := New(s, b, remote, "cashier-1", opts...)
	t.Cleanup(e.Close)
	return e, s, b
}

func TestCreateOrder_OfflinePersistsWithoutNetwork(t *testing.T) {
	remote := &fakeRemote{}
	e, s, _ := newTestEngine(t, remote)
	e.SetOnline(false)
	ctx := context.Background()

	order, err := e.CreateOrder(ctx, Order{Total: 24}, []OrderItem{
		{ProductID: "burger", Name: "Burger", Price: 10, Qty: 1},
		{ProductID: "pepsi", Name: "Pepsi", Price: 3, Qty: 1},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 24.0, order.Total)
	assert.Equal(t, "cashier-1", order.DeviceID)
	assert.NotEmpty(t, order.UpdatedAt)

	items, err := e.OrderItemsFor(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, order.ID, item.OrderID)
		assert.NotEmpty(t, item.ID)
	}

	var outbox []Mutation
	require.NoError(t, s.GetAll(ctx, "outbox", &outbox))
	require.Len(t, outbox, 1)
	assert.Equal(t, OpCreateWithItems, outbox[0].Op)
	assert.Equal(t, "orders", outbox[0].Collection)
	assert.Equal(t, "cashier-1", outbox[0].DeviceID)

	push, pull := remote.counts()
	assert.Zero(t, push, "offline create must not touch the network")
	assert.Zero(t, pull, "offline create must not touch the network")
}

func TestCreateOrder_GeneratedIDsAreUnique(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeRemote{})
	e.SetOnline(false)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		order, err := e.CreateOrder(ctx, Order{Total: 1}, nil)
		require.NoError(t, err)
		require.False(t, seen[order.ID], "duplicate order id %s", order.ID)
		seen[order.ID] = true
	}
}

func TestCreateOrder_KeepsProvidedIDAndStatus(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeRemote{})
	e.SetOnline(false)

	order, err := e.CreateOrder(context.Background(), Order{ID: "ord-7", Status: StatusReady, Total: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ord-7", order.ID)
	assert.Equal(t, StatusReady, order.Status)
}

func TestUpdateOrderStatus_MissingOrder(t *testing.T) {
	e, s, _ := newTestEngine(t, &fakeRemote{})
	e.SetOnline(false)
	ctx := context.Background()

	got, err := e.UpdateOrderStatus(ctx, "no-such-order", StatusReady)
	require.NoError(t, err)
	assert.Nil(t, got)

	var outbox []Mutation
	require.NoError(t, s.GetAll(ctx, "outbox", &outbox))
	assert.Empty(t, outbox, "missing order must not queue a mutation")
}

func TestUpdateOrderStatus_OverwritesAndQueues(t *testing.T) {
	e, s, _ := newTestEngine(t, &fakeRemote{})
	e.SetOnline(false)
	ctx := context.Background()

	order, err := e.CreateOrder(ctx, Order{Total: 10}, nil)
	require.NoError(t, err)

	updated, err := e.UpdateOrderStatus(ctx, order.ID, StatusPreparing)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, StatusPreparing, updated.Status)

	var stored Order
	require.NoError(t, s.Get(ctx, "orders", order.ID, &stored))
	assert.Equal(t, StatusPreparing, stored.Status)

	var outbox []Mutation
	require.NoError(t, s.GetAll(ctx, "outbox", &outbox))
	assert.Len(t, outbox, 2) // createWithItems + updateStatus
}

func TestUpdateOrderStatus_AcceptsAnyStatusString(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeRemote{})
	e.SetOnline(false)
	ctx := context.Background()

	order, err := e.CreateOrder(ctx, Order{Total: 10}, nil)
	require.NoError(t, err)

	updated, err := e.UpdateOrderStatus(ctx, order.ID, "on-fire")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "on-fire", updated.Status)
}

func TestListOrders_SortedByUpdatedAtDescending(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, s, _ := newTestEngine(t, &fakeRemote{}, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	e.SetOnline(false)
	ctx := context.Background()

	first, err := e.CreateOrder(ctx, Order{Total: 1}, nil)
	require.NoError(t, err)
	second, err := e.CreateOrder(ctx, Order{Total: 2}, nil)
	require.NoError(t, err)

	// Touching the first order makes it the most recent again.
	_, err = e.UpdateOrderStatus(ctx, first.ID, StatusReady)
	require.NoError(t, err)

	// A record without updatedAt sorts last.
	require.NoError(t, s.Put(ctx, "orders", "legacy", Order{ID: "legacy", Total: 3}))

	orders, err := e.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)
	assert.Equal(t, "legacy", orders[2].ID)
}

func TestQueueMutation_EmitsEventAndStampsFields(t *testing.T) {
	e, _, b := newTestEngine(t, &fakeRemote{},
		WithIDGenerator(NewSequenceGenerator("mut-1")),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	)
	e.SetOnline(false)

	var queued []any
	b.Subscribe(bus.OutboxQueued, func(payload any) { queued = append(queued, payload) })

	m, err := e.QueueMutation(context.Background(), "orders", OpUpdateStatus, map[string]string{"id": "x"})
	require.NoError(t, err)

	assert.Equal(t, "mut-1", m.ID)
	assert.Equal(t, int64(1700000000000), m.TS)
	assert.Equal(t, "cashier-1", m.DeviceID)
	require.Len(t, queued, 1)
	assert.Equal(t, m, queued[0])
}

func TestSeedMenu_OnlyWhenEmpty(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeRemote{})
	e.SetOnline(false)
	ctx := context.Background()

	seeded, err := e.SeedMenu(ctx, DefaultCatalog())
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = e.SeedMenu(ctx, []MenuItem{{ID: "other", Name: "Other"}})
	require.NoError(t, err)
	assert.False(t, seeded, "non-empty catalog must not be reseeded")

	items, err := e.MenuItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, len(DefaultCatalog()))
}
