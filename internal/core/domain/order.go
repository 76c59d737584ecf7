package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusScheduled OrderStatus = "scheduled"
	OrderStatusProduced  OrderStatus = "produced"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusNoShow    OrderStatus = "no_show"
)

// ParseOrderStatus validates a raw status value from the wire or the database.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusSubmitted, OrderStatusConfirmed, OrderStatusScheduled,
		OrderStatusProduced, OrderStatusReady, OrderStatusPickedUp,
		OrderStatusCanceled, OrderStatusNoShow:
		return OrderStatus(s), nil
	}
	return "", Validationf("unknown order status %q", s)
}

// Counts reports whether an order in this status occupies slot capacity.
func (s OrderStatus) Counts() bool {
	switch s {
	case OrderStatusCanceled, OrderStatusNoShow:
		return false
	}
	return true
}

const lineItemsVersion = 1

// LineItem is one flavor line on an order.
type LineItem struct {
	FlavorID string `json:"flavor_id"`
	Flavor   string `json:"flavor"`
	Quantity int    `json:"qty"`
}

type LineItems []LineItem

type lineItemsEnvelope struct {
	Version int        `json:"v"`
	Lines   []LineItem `json:"lines"`
}

// EncodeLineItems renders the versioned column representation.
func EncodeLineItems(lines LineItems) ([]byte, error) {
	raw, err := json.Marshal(lineItemsEnvelope{Version: lineItemsVersion, Lines: lines})
	if err != nil {
		return nil, fmt.Errorf("encode line items: %w", err)
	}
	return raw, nil
}

// ParseLineItems decodes the stored line-item column. ok is false when the
// payload is missing, malformed, or from an unknown version; callers fall
// back to a unit quantity of 1 instead of failing the surrounding operation.
func ParseLineItems(raw []byte) (LineItems, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var env lineItemsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Version != lineItemsVersion {
		return nil, false
	}
	for _, l := range env.Lines {
		if l.Quantity < 0 {
			return nil, false
		}
	}
	return LineItems(env.Lines), true
}

// TotalUnits sums the line quantities.
func (l LineItems) TotalUnits() int {
	total := 0
	for _, line := range l {
		total += line.Quantity
	}
	return total
}

// Order is a customer commitment for one pickup slot.
type Order struct {
	ID         string
	SlotID     string
	Customer   string
	Status     OrderStatus
	Lines      LineItems
	LinesOK    bool // false when the stored line items failed to parse
	TotalCents int  // carried through for reporting, not used by core logic
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UnitQuantity is the order's contribution to slot capacity. Orders whose
// line items are unreadable or sum to nothing count as a single unit rather
// than silently dropping to zero.
func (o Order) UnitQuantity() int {
	if !o.LinesOK {
		return 1
	}
	if total := o.Lines.TotalUnits(); total > 0 {
		return total
	}
	return 1
}

// OrderTransition is one order status write plus its capacity effect,
// applied atomically by the store. A Delta of zero means the write is
// capacity-neutral and no slot counter update happens.
type OrderTransition struct {
	OrderID string
	SlotID  string
	From    OrderStatus
	To      OrderStatus
	Delta   int
}

// TransitionFor computes the status write and ledger delta for moving an
// order to target. Only transitions that cross the counts-toward-capacity
// boundary carry a delta.
func TransitionFor(o Order, target OrderStatus) OrderTransition {
	t := OrderTransition{OrderID: o.ID, SlotID: o.SlotID, From: o.Status, To: target}
	before, after := o.Status.Counts(), target.Counts()
	if before == after {
		return t
	}
	qty := o.UnitQuantity()
	if after {
		t.Delta = qty
	} else {
		t.Delta = -qty
	}
	return t
}
