// Package pos implements the offline synchronization engine for a
// point-of-sale terminal: a durable outbox of local mutations, a
// push-then-pull sync protocol against the remote endpoint, and the
// domain operations the terminal UI calls into.
package pos

import "encoding/json"

// Order statuses. The store accepts any status string through
// UpdateOrderStatus; these are the values the terminal itself writes.
const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusCompleted = "completed"
)

// Outbox operation names understood by the remote mutation endpoint.
const (
	OpCreateWithItems = "createWithItems"
	OpUpdateStatus    = "updateStatus"
)

// Order is a customer order placed at the terminal.
type Order struct {
	ID        string  `json:"id"`
	Total     float64 `json:"total"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt"`
	DeviceID  string  `json:"deviceId"`
}

// OrderItem is a line item belonging to an order. OrderID references the
// owning order by convention; the store indexes it but does not enforce it.
type OrderItem struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"orderId"`
	ProductID      string  `json:"productId,omitempty"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Qty            int     `json:"qty"`
	SpecialRequest string  `json:"specialRequest,omitempty"`
	UpdatedAt      string  `json:"updatedAt,omitempty"`
	DeviceID       string  `json:"deviceId,omitempty"`
}

// MenuItem is immutable catalog reference data, seeded once if empty.
type MenuItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
	Icon     string  `json:"icon,omitempty"`
}

// InventoryItem is opaque to the engine; it is only moved during sync.
type InventoryItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Mutation is one locally made change awaiting transmission to the server.
// The entity payload is self-contained and the id globally unique, so the
// server can apply the batch idempotently in any order.
type Mutation struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Op         string          `json:"op"`
	Entity     json.RawMessage `json:"entity"`
	DeviceID   string          `json:"deviceId"`
	TS         int64           `json:"ts"`
}

// Checkpoint marks the last successfully pulled point in the server's
// change stream. Stored under meta/lastSync; monotonically non-decreasing.
type Checkpoint struct {
	Key string `json:"key"`
	TS  int64  `json:"ts"`
}

// checkpointKey is the single meta row holding the pull checkpoint.
const checkpointKey = "lastSync"

// ChangeSet is the server's response to a pull: everything that changed
// since the requested checkpoint.
type ChangeSet struct {
	Orders     []Order         `json:"orders"`
	OrderItems []OrderItem     `json:"orderItems"`
	MenuItems  []MenuItem      `json:"menuItems"`
	Inventory  []InventoryItem `json:"inventory"`
}

// createWithItemsEntity is the payload of an OpCreateWithItems mutation.
type createWithItemsEntity struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

// updateStatusEntity is the payload of an OpUpdateStatus mutation.
type updateStatusEntity struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updatedAt"`
}

// DefaultCatalog returns the sample menu seeded into an empty terminal.
func DefaultCatalog() []MenuItem {
	return []MenuItem{
		{ID: "burger", Name: "Burger", Price: 10, Category: "Mains", Icon: "🍔"},
		{ID: "pizza", Name: "Pizza", Price: 11, Category: "Mains", Icon: "🍕"},
		{ID: "fries", Name: "Fries", Price: 4, Category: "Sides", Icon: "🍟"},
		{ID: "pepsi", Name: "Pepsi", Price: 3, Category: "Drinks", Icon: "🥤"},
		{ID: "water", Name: "Water", Price: 2, Category: "Drinks", Icon: "💧"},
	}
}
