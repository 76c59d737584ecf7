package port

import (
	"context"
	"errors"
	"time"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
)

// ErrConflict is returned when a guarded write finds the entity changed
// underneath it, e.g. an order whose status moved between the service's read
// and the store's conditional update. The whole unit of work is rolled back.
var ErrConflict = errors.New("conflicted with a concurrent update")

// DatabaseRepository is the durable store. Every method that touches more
// than one entity executes as a single transaction: either every write in it
// lands or none do.
type DatabaseRepository interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetSlot(ctx context.Context, id string) (*domain.Slot, error)
	ListSlots(ctx context.Context) ([]domain.Slot, error)

	// ListAvailableOrders returns orders targeting slots on date, in
	// submitted or confirmed status, not yet referenced by any batch item.
	ListAvailableOrders(ctx context.Context, date time.Time) ([]domain.Order, error)

	// ApplyTransitions writes every status change and its slot counter
	// delta in one transaction. Slot decrements floor at zero; a missing
	// slot aborts the whole unit.
	ApplyTransitions(ctx context.Context, ts []domain.OrderTransition) error

	CreateBatch(ctx context.Context, b domain.Batch) error
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)

	// AssignOrder inserts the order's batch items and applies the order's
	// transition to scheduled in one transaction, guarded on the batch
	// still being draft.
	AssignOrder(ctx context.Context, batchID string, items []domain.BatchItem, t domain.OrderTransition) error

	// UnassignOrder deletes the order's items from the batch and reverts
	// the order in one transaction, guarded on the batch still being draft.
	UnassignOrder(ctx context.Context, batchID, orderID string, t domain.OrderTransition) error

	AddBatchItem(ctx context.Context, item domain.BatchItem) error
	UpdateExtraQuantity(ctx context.Context, batchID, itemID string, quantity int) error
	RemoveExtra(ctx context.Context, batchID, itemID string) error

	// FinalizeBatch marks the batch completed, inserts every production
	// record, and applies every order transition in one transaction,
	// guarded on the batch still being draft.
	FinalizeBatch(ctx context.Context, fin domain.BatchFinalization) error

	GetRecord(ctx context.Context, id string) (*domain.ProductionRecord, error)
	UpdateRecordDisposition(ctx context.Context, id string, d domain.Disposition, salePriceCents int) error

	// SplitRecord decrements the parent by the sibling's quantity and
	// inserts the sibling in one transaction, guarded on the parent still
	// holding more than the split amount.
	SplitRecord(ctx context.Context, parentID string, sibling domain.ProductionRecord) error
}
