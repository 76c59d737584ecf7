package domain

import "time"

type Disposition string

const (
	DispositionPending  Disposition = "pending"
	DispositionPickedUp Disposition = "picked_up"
	DispositionSold     Disposition = "sold"
	DispositionWasted   Disposition = "wasted"
	DispositionPersonal Disposition = "personal"
	DispositionGifted   Disposition = "gifted"
)

// ParseDisposition validates a raw disposition value.
func ParseDisposition(s string) (Disposition, error) {
	switch Disposition(s) {
	case DispositionPending, DispositionPickedUp, DispositionSold,
		DispositionWasted, DispositionPersonal, DispositionGifted:
		return Disposition(s), nil
	}
	return "", Validationf("unknown disposition %q", s)
}

// ProductionRecord is a finalized, independently disposable unit-group.
// Records form a flat arena keyed by ID: splitting creates a sibling that
// points back at its parent via ParentID, so lineage checks are a sum over
// descendants rather than a tree walk. Records are never deleted, only
// re-disposed or split.
type ProductionRecord struct {
	ID             string
	BatchID        string
	OrderID        string // empty for records from extra items
	ParentID       string // empty for records created at finalization
	FlavorID       string
	Flavor         string
	Quantity       int
	Disposition    Disposition
	SalePriceCents int // per-unit price; meaningful only when sold
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
