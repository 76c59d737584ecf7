package domain

import (
	"sort"
	"time"
)

type BatchStatus string

const (
	BatchStatusDraft     BatchStatus = "draft"
	BatchStatusCompleted BatchStatus = "completed"
)

// Batch is a prep sheet: a draft plan grouping order lines and extra items
// for one production day. It is editable only while in draft and becomes
// immutable once completed.
type Batch struct {
	ID          string
	TargetDate  time.Time
	Status      BatchStatus
	CompletedAt *time.Time
	CompletedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []BatchItem
}

// BatchItem is one line on a prep sheet. Order-backed items carry the
// originating order's ID and customer; extras have an empty OrderID.
type BatchItem struct {
	ID              string
	BatchID         string
	OrderID         string
	Customer        string
	FlavorID        string
	Flavor          string
	PlannedQuantity int
}

// IsExtra reports whether the item is a standalone line with no backing order.
func (i BatchItem) IsExtra() bool {
	return i.OrderID == ""
}

// SortItemsForDisplay orders items for the prep sheet view: order-backed
// lines first, then by customer and flavor name. Display order only; it has
// no effect on finalization.
func SortItemsForDisplay(items []BatchItem) {
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].IsExtra() != items[b].IsExtra() {
			return !items[a].IsExtra()
		}
		if items[a].Customer != items[b].Customer {
			return items[a].Customer < items[b].Customer
		}
		return items[a].Flavor < items[b].Flavor
	})
}

// BatchFinalization is the atomic unit of work that completes a batch:
// the batch status write, one production record per item, and the status
// advance for every referenced order, applied all-or-nothing.
type BatchFinalization struct {
	BatchID     string
	CompletedAt time.Time
	CompletedBy string
	Records     []ProductionRecord
	Transitions []OrderTransition
}
