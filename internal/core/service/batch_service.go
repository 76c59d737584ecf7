package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/port"
)

// BatchService owns the prep sheet workflow: drafting a batch from open
// orders plus extra items, and finalizing it into production records. It is
// the only caller that can move orders into the scheduled and produced
// statuses, which it does through the order service's unexported transition
// path.
type BatchService struct {
	db     port.DatabaseRepository
	orders *OrderService
	audit  *AuditTrail
}

func NewBatchService(db port.DatabaseRepository, orders *OrderService, audit *AuditTrail) *BatchService {
	return &BatchService{db: db, orders: orders, audit: audit}
}

// CreateDraft opens a new prep sheet for the target date.
func (s *BatchService) CreateDraft(ctx context.Context, actor string, date time.Time) (*domain.Batch, error) {
	now := time.Now()
	b := domain.Batch{
		ID:         uuid.New().String(),
		TargetDate: date,
		Status:     domain.BatchStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.CreateBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	s.audit.Record(actor, "batch.create", "batch", b.ID, date.Format("2006-01-02"))
	return &b, nil
}

// GetBatch returns the batch with its items in prep sheet display order.
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	b, err := s.db.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", batchID, err)
	}
	if b == nil {
		return nil, domain.NotFoundError{Entity: "batch", ID: batchID}
	}
	domain.SortItemsForDisplay(b.Items)
	return b, nil
}

// ListAvailableOrders returns the assignment candidates for date: orders on
// that date's slots, still submitted or confirmed, and not already placed on
// any prep sheet.
func (s *BatchService) ListAvailableOrders(ctx context.Context, date time.Time) ([]domain.Order, error) {
	orders, err := s.db.ListAvailableOrders(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list available orders: %w", err)
	}
	return orders, nil
}

// AssignOrder places an order on a draft batch, one item per flavor line,
// and moves the order to scheduled. An order with unreadable line items
// still gets a single one-unit item so it is not lost from the prep sheet.
func (s *BatchService) AssignOrder(ctx context.Context, actor, batchID, orderID string) error {
	b, err := s.mustDraft(ctx, batchID)
	if err != nil {
		return err
	}
	o, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("read order %s: %w", orderID, err)
	}
	if o == nil {
		return domain.NotFoundError{Entity: "order", ID: orderID}
	}
	switch o.Status {
	case domain.OrderStatusSubmitted, domain.OrderStatusConfirmed:
	default:
		return domain.Statef("order %s is %s, only submitted or confirmed orders can be assigned", orderID, o.Status)
	}
	for _, item := range b.Items {
		if item.OrderID == orderID {
			return domain.Validationf("order %s is already on this prep sheet", orderID)
		}
	}

	items := batchItemsForOrder(b.ID, *o)
	t := s.orders.transitionFor(*o, domain.OrderStatusScheduled)
	if err := s.db.AssignOrder(ctx, batchID, items, t); err != nil {
		return fmt.Errorf("assign order %s to batch %s: %w", orderID, batchID, err)
	}
	s.orders.mirrorDelta(ctx, t)
	s.audit.Record(actor, "batch.assign", "batch", batchID, fmt.Sprintf("order %s, %d items", orderID, len(items)))
	return nil
}

// UnassignOrder removes every item backed by the order from a draft batch
// and reverts the order to submitted.
func (s *BatchService) UnassignOrder(ctx context.Context, actor, batchID, orderID string) error {
	b, err := s.mustDraft(ctx, batchID)
	if err != nil {
		return err
	}
	found := false
	for _, item := range b.Items {
		if item.OrderID == orderID {
			found = true
			break
		}
	}
	if !found {
		return domain.NotFoundError{Entity: "order on prep sheet", ID: orderID}
	}
	o, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("read order %s: %w", orderID, err)
	}
	if o == nil {
		return domain.NotFoundError{Entity: "order", ID: orderID}
	}

	t := s.orders.transitionFor(*o, domain.OrderStatusSubmitted)
	if err := s.db.UnassignOrder(ctx, batchID, orderID, t); err != nil {
		return fmt.Errorf("unassign order %s from batch %s: %w", orderID, batchID, err)
	}
	s.orders.mirrorDelta(ctx, t)
	s.audit.Record(actor, "batch.unassign", "batch", batchID, "order "+orderID)
	return nil
}

// AddExtra appends a standalone item with no backing order to a draft batch.
func (s *BatchService) AddExtra(ctx context.Context, actor, batchID, flavorID, flavor string, quantity int) (*domain.BatchItem, error) {
	if quantity < 1 {
		return nil, domain.Validationf("extra quantity must be at least 1, got %d", quantity)
	}
	if _, err := s.mustDraft(ctx, batchID); err != nil {
		return nil, err
	}
	item := domain.BatchItem{
		ID:              uuid.New().String(),
		BatchID:         batchID,
		FlavorID:        flavorID,
		Flavor:          flavor,
		PlannedQuantity: quantity,
	}
	if err := s.db.AddBatchItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add extra to batch %s: %w", batchID, err)
	}
	s.audit.Record(actor, "batch.extra.add", "batch", batchID, fmt.Sprintf("%s x%d", flavor, quantity))
	return &item, nil
}

// UpdateExtra changes the planned quantity of a standalone item.
func (s *BatchService) UpdateExtra(ctx context.Context, actor, batchID, itemID string, quantity int) error {
	if quantity < 1 {
		return domain.Validationf("extra quantity must be at least 1, got %d", quantity)
	}
	if _, err := s.extraItem(ctx, batchID, itemID); err != nil {
		return err
	}
	if err := s.db.UpdateExtraQuantity(ctx, batchID, itemID, quantity); err != nil {
		return fmt.Errorf("update extra %s: %w", itemID, err)
	}
	s.audit.Record(actor, "batch.extra.update", "batch", batchID, fmt.Sprintf("item %s x%d", itemID, quantity))
	return nil
}

// RemoveExtra deletes a standalone item from a draft batch.
func (s *BatchService) RemoveExtra(ctx context.Context, actor, batchID, itemID string) error {
	if _, err := s.extraItem(ctx, batchID, itemID); err != nil {
		return err
	}
	if err := s.db.RemoveExtra(ctx, batchID, itemID); err != nil {
		return fmt.Errorf("remove extra %s: %w", itemID, err)
	}
	s.audit.Record(actor, "batch.extra.remove", "batch", batchID, "item "+itemID)
	return nil
}

// Finalize converts every item on a draft batch into a production record,
// using the caller's actual quantities where provided and the planned
// quantity otherwise, advances every referenced order to produced exactly
// once, and completes the batch. The whole operation is one atomic unit of
// work.
func (s *BatchService) Finalize(ctx context.Context, actor, batchID string, actualQuantities map[string]int) (*domain.Batch, error) {
	b, err := s.mustDraft(ctx, batchID)
	if err != nil {
		return nil, err
	}

	itemsByID := make(map[string]domain.BatchItem, len(b.Items))
	for _, item := range b.Items {
		itemsByID[item.ID] = item
	}
	for itemID, qty := range actualQuantities {
		if _, ok := itemsByID[itemID]; !ok {
			return nil, domain.Validationf("actual quantity given for unknown item %s", itemID)
		}
		if qty < 0 {
			return nil, domain.Validationf("actual quantity for item %s must not be negative, got %d", itemID, qty)
		}
	}

	now := time.Now()
	records := make([]domain.ProductionRecord, 0, len(b.Items))
	orderIDs := make([]string, 0, len(b.Items))
	seen := make(map[string]bool)
	for _, item := range b.Items {
		qty := item.PlannedQuantity
		if actual, ok := actualQuantities[item.ID]; ok {
			qty = actual
		}
		records = append(records, domain.ProductionRecord{
			ID:          uuid.New().String(),
			BatchID:     b.ID,
			OrderID:     item.OrderID,
			FlavorID:    item.FlavorID,
			Flavor:      item.Flavor,
			Quantity:    qty,
			Disposition: domain.DispositionPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if item.OrderID != "" && !seen[item.OrderID] {
			seen[item.OrderID] = true
			orderIDs = append(orderIDs, item.OrderID)
		}
	}

	ts := make([]domain.OrderTransition, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		o, err := s.db.GetOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("read order %s: %w", orderID, err)
		}
		if o == nil {
			return nil, domain.NotFoundError{Entity: "order", ID: orderID}
		}
		ts = append(ts, s.orders.transitionFor(*o, domain.OrderStatusProduced))
	}

	fin := domain.BatchFinalization{
		BatchID:     b.ID,
		CompletedAt: now,
		CompletedBy: actor,
		Records:     records,
		Transitions: ts,
	}
	if err := s.db.FinalizeBatch(ctx, fin); err != nil {
		return nil, fmt.Errorf("finalize batch %s: %w", batchID, err)
	}
	for _, t := range ts {
		s.orders.mirrorDelta(ctx, t)
	}
	s.audit.Record(actor, "batch.finalize", "batch", batchID, fmt.Sprintf("%d records", len(records)))

	b.Status = domain.BatchStatusCompleted
	b.CompletedAt = &now
	b.CompletedBy = actor
	b.UpdatedAt = now
	return b, nil
}

// mustDraft loads the batch and rejects anything not in draft. Completed
// prep sheets are immutable forever.
func (s *BatchService) mustDraft(ctx context.Context, batchID string) (*domain.Batch, error) {
	b, err := s.db.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", batchID, err)
	}
	if b == nil {
		return nil, domain.NotFoundError{Entity: "batch", ID: batchID}
	}
	if b.Status != domain.BatchStatusDraft {
		return nil, domain.Statef("prep sheet %s is %s and can no longer be changed", batchID, b.Status)
	}
	return b, nil
}

// extraItem verifies the batch is draft and the item is a standalone extra.
func (s *BatchService) extraItem(ctx context.Context, batchID, itemID string) (*domain.BatchItem, error) {
	b, err := s.mustDraft(ctx, batchID)
	if err != nil {
		return nil, err
	}
	for _, item := range b.Items {
		if item.ID == itemID {
			if !item.IsExtra() {
				return nil, domain.Validationf("item %s is backed by order %s, its quantity comes from the order", itemID, item.OrderID)
			}
			return &item, nil
		}
	}
	return nil, domain.NotFoundError{Entity: "batch item", ID: itemID}
}

// batchItemsForOrder expands an order into prep sheet items, one per flavor
// line. Unreadable or empty line items degrade to a single one-unit item.
func batchItemsForOrder(batchID string, o domain.Order) []domain.BatchItem {
	if !o.LinesOK || len(o.Lines) == 0 {
		log.Printf("order %s: unreadable line items, planning a single unit", o.ID)
		return []domain.BatchItem{{
			ID:              uuid.New().String(),
			BatchID:         batchID,
			OrderID:         o.ID,
			Customer:        o.Customer,
			PlannedQuantity: 1,
		}}
	}
	items := make([]domain.BatchItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, domain.BatchItem{
			ID:              uuid.New().String(),
			BatchID:         batchID,
			OrderID:         o.ID,
			Customer:        o.Customer,
			FlavorID:        line.FlavorID,
			Flavor:          line.Flavor,
			PlannedQuantity: line.Quantity,
		})
	}
	return items
}
