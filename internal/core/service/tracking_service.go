package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/port"
)

// TrackingService owns production records after finalization: changing a
// record's disposition and splitting a record into independently disposed
// fragments.
type TrackingService struct {
	db    port.DatabaseRepository
	audit *AuditTrail
}

func NewTrackingService(db port.DatabaseRepository, audit *AuditTrail) *TrackingService {
	return &TrackingService{db: db, audit: audit}
}

// GetRecord returns one production record.
func (s *TrackingService) GetRecord(ctx context.Context, recordID string) (*domain.ProductionRecord, error) {
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", recordID, err)
	}
	if rec == nil {
		return nil, domain.NotFoundError{Entity: "production record", ID: recordID}
	}
	return rec, nil
}

// UpdateDisposition sets a record's disposition. Re-disposing an already
// disposed record is always allowed. The sale price only sticks when the
// record is sold; every other disposition stores zero.
func (s *TrackingService) UpdateDisposition(ctx context.Context, actor, recordID string, d domain.Disposition, salePriceCents int) error {
	if _, err := domain.ParseDisposition(string(d)); err != nil {
		return err
	}
	if salePriceCents < 0 {
		return domain.Validationf("sale price must not be negative, got %d", salePriceCents)
	}
	if d != domain.DispositionSold {
		salePriceCents = 0
	}
	rec, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if err := s.db.UpdateRecordDisposition(ctx, recordID, d, salePriceCents); err != nil {
		return fmt.Errorf("update disposition of record %s: %w", recordID, err)
	}
	s.audit.Record(actor, "record.dispose", "record", recordID, fmt.Sprintf("%s -> %s", rec.Disposition, d))
	return nil
}

// Split carves quantity units off a record into a new sibling with its own
// disposition. The split amount must leave at least one unit on the parent;
// the sibling keeps the parent's batch, order, and flavor references and
// points back at the parent for lineage, so quantity is conserved across any
// sequence of splits.
func (s *TrackingService) Split(ctx context.Context, actor, recordID string, quantity int, d domain.Disposition) (*domain.ProductionRecord, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("split quantity must be positive, got %d", quantity)
	}
	if _, err := domain.ParseDisposition(string(d)); err != nil {
		return nil, err
	}
	rec, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if quantity >= rec.Quantity {
		return nil, domain.Validationf("split quantity %d must be less than the record's %d units", quantity, rec.Quantity)
	}

	now := time.Now()
	sibling := domain.ProductionRecord{
		ID:          uuid.New().String(),
		BatchID:     rec.BatchID,
		OrderID:     rec.OrderID,
		ParentID:    rec.ID,
		FlavorID:    rec.FlavorID,
		Flavor:      rec.Flavor,
		Quantity:    quantity,
		Disposition: d,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.SplitRecord(ctx, recordID, sibling); err != nil {
		return nil, fmt.Errorf("split record %s: %w", recordID, err)
	}
	s.audit.Record(actor, "record.split", "record", recordID, fmt.Sprintf("%d units -> %s (%s)", quantity, sibling.ID, d))
	return &sibling, nil
}
