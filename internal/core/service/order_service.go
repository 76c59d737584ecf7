package service

import (
	"context"
	"fmt"
	"log"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/port"
)

// OrderService owns order status transitions and the slot capacity ledger
// they drive. Every transition that crosses the counts-toward-capacity
// boundary adjusts the slot's committed count in the same transaction as the
// status write.
type OrderService struct {
	db    port.DatabaseRepository
	cache port.CacheRepository
	audit *AuditTrail
}

func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, audit *AuditTrail) *OrderService {
	return &OrderService{db: db, cache: cache, audit: audit}
}

// UpdateStatus moves one order to target. The scheduled and produced
// statuses are owned by the prep sheet workflow and rejected here; every
// other target is accepted, including reinstating a canceled order.
func (s *OrderService) UpdateStatus(ctx context.Context, actor, orderID string, target domain.OrderStatus) error {
	if err := checkExternalTarget(target); err != nil {
		return err
	}
	t, err := s.applyStatusChange(ctx, orderID, target)
	if err != nil {
		return err
	}
	s.audit.Record(actor, "order.status", "order", orderID, fmt.Sprintf("%s -> %s", t.From, t.To))
	return nil
}

// BulkUpdateStatus moves every listed order to target inside one atomic unit
// of work. The capacity rule is applied per order, so orders already at a
// non-counting status contribute no delta. Any missing order fails the whole
// batch before anything is written.
func (s *OrderService) BulkUpdateStatus(ctx context.Context, actor string, orderIDs []string, target domain.OrderStatus) error {
	if err := checkExternalTarget(target); err != nil {
		return err
	}
	if len(orderIDs) == 0 {
		return domain.Validationf("no orders given")
	}

	ts := make([]domain.OrderTransition, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, err := s.db.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("read order %s: %w", id, err)
		}
		if o == nil {
			return domain.NotFoundError{Entity: "order", ID: id}
		}
		ts = append(ts, s.transitionFor(*o, target))
	}

	if err := s.db.ApplyTransitions(ctx, ts); err != nil {
		return fmt.Errorf("bulk status update: %w", err)
	}
	for _, t := range ts {
		s.mirrorDelta(ctx, t)
		s.audit.Record(actor, "order.status", "order", t.OrderID, fmt.Sprintf("%s -> %s", t.From, t.To))
	}
	return nil
}

// SlotCapacity is the open-capacity view of one slot.
type SlotCapacity struct {
	SlotID       string
	Capacity     int
	Committed    int
	OpenCapacity int
}

// SlotOpenCapacity reads the slot's committed count through the cache
// mirror, falling back to the durable store and reseeding the mirror on a
// miss. OpenCapacity goes negative when the slot is overbooked.
func (s *OrderService) SlotOpenCapacity(ctx context.Context, slotID string) (SlotCapacity, error) {
	capacity, committed, ok, err := s.cache.GetSlot(ctx, slotID)
	if err != nil {
		log.Printf("capacity mirror read for slot %s failed: %v", slotID, err)
	}
	if err == nil && ok {
		return SlotCapacity{
			SlotID:       slotID,
			Capacity:     capacity,
			Committed:    committed,
			OpenCapacity: capacity - committed,
		}, nil
	}

	slot, err := s.db.GetSlot(ctx, slotID)
	if err != nil {
		return SlotCapacity{}, fmt.Errorf("read slot %s: %w", slotID, err)
	}
	if slot == nil {
		return SlotCapacity{}, domain.NotFoundError{Entity: "slot", ID: slotID}
	}
	if err := s.cache.SetSlot(ctx, slotID, slot.Capacity, slot.CommittedCount); err != nil {
		log.Printf("capacity mirror seed for slot %s failed: %v", slotID, err)
	}
	return SlotCapacity{
		SlotID:       slotID,
		Capacity:     slot.Capacity,
		Committed:    slot.CommittedCount,
		OpenCapacity: slot.OpenCapacity(),
	}, nil
}

// applyStatusChange is the single path for writing an order status. Keeping
// it unexported makes the prep sheet workflow, which lives in this package,
// the only caller able to reach the scheduled and produced statuses.
func (s *OrderService) applyStatusChange(ctx context.Context, orderID string, target domain.OrderStatus) (domain.OrderTransition, error) {
	o, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderTransition{}, fmt.Errorf("read order %s: %w", orderID, err)
	}
	if o == nil {
		return domain.OrderTransition{}, domain.NotFoundError{Entity: "order", ID: orderID}
	}
	t := s.transitionFor(*o, target)
	if err := s.db.ApplyTransitions(ctx, []domain.OrderTransition{t}); err != nil {
		return domain.OrderTransition{}, fmt.Errorf("apply status change for order %s: %w", orderID, err)
	}
	s.mirrorDelta(ctx, t)
	return t, nil
}

// transitionFor wraps domain.TransitionFor with the degraded-mode warning:
// an order whose line items cannot be parsed still transitions, counting as
// one unit.
func (s *OrderService) transitionFor(o domain.Order, target domain.OrderStatus) domain.OrderTransition {
	t := domain.TransitionFor(o, target)
	if t.Delta != 0 && !o.LinesOK {
		log.Printf("order %s: unreadable line items, counting as 1 unit", o.ID)
	}
	return t
}

// mirrorDelta forwards a capacity delta to the cache mirror. Best-effort:
// the durable store already holds the authoritative count.
func (s *OrderService) mirrorDelta(ctx context.Context, t domain.OrderTransition) {
	if t.Delta == 0 {
		return
	}
	if err := s.cache.AdjustCommitted(ctx, t.SlotID, t.Delta); err != nil {
		log.Printf("capacity mirror adjust for slot %s failed: %v", t.SlotID, err)
	}
}

func checkExternalTarget(target domain.OrderStatus) error {
	if _, err := domain.ParseOrderStatus(string(target)); err != nil {
		return err
	}
	switch target {
	case domain.OrderStatusScheduled, domain.OrderStatusProduced:
		return domain.Validationf("status %s is set by the prep sheet workflow", target)
	}
	return nil
}
