package port

import "context"

// CacheRepository mirrors per-slot capacity into a fast read path for the
// storefront. The durable store stays authoritative: mirror writes are
// best-effort and a failed adjustment is logged, never escalated.
type CacheRepository interface {
	// SetSlot seeds or refreshes the mirror for one slot.
	SetSlot(ctx context.Context, slotID string, capacity, committed int) error

	// AdjustCommitted atomically adds delta to the mirrored committed
	// count, flooring at zero. A slot absent from the mirror is left
	// absent; the next read-through repopulates it.
	AdjustCommitted(ctx context.Context, slotID string, delta int) error

	// GetSlot returns the mirrored capacity and committed count.
	// ok is false on a mirror miss.
	GetSlot(ctx context.Context, slotID string) (capacity, committed int, ok bool, err error)
}
