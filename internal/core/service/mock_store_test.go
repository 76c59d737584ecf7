package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/port"
)

// mockStore is an in-memory port.DatabaseRepository with the same guard and
// atomicity semantics as the MySQL adapter: conditional writes fail with
// port.ErrConflict, slot decrements floor at zero, and multi-entity units of
// work validate everything before applying anything.
type mockStore struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	slots   map[string]domain.Slot
	batches map[string]domain.Batch
	records map[string]domain.ProductionRecord
	audits  []domain.AuditEntry
}

func newMockStore() *mockStore {
	return &mockStore{
		orders:  make(map[string]domain.Order),
		slots:   make(map[string]domain.Slot),
		batches: make(map[string]domain.Batch),
		records: make(map[string]domain.ProductionRecord),
	}
}

func (m *mockStore) addSlot(id string, capacity, committed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[id] = domain.Slot{
		ID: id, Date: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		Capacity: capacity, CommittedCount: committed, Open: true,
	}
}

func (m *mockStore) addOrder(id, slotID, customer string, status domain.OrderStatus, lines domain.LineItems) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = domain.Order{
		ID: id, SlotID: slotID, Customer: customer, Status: status,
		Lines: lines, LinesOK: true,
	}
}

func (m *mockStore) addUnparseableOrder(id, slotID string, status domain.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = domain.Order{ID: id, SlotID: slotID, Status: status, LinesOK: false}
}

func (m *mockStore) order(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *mockStore) slot(id string) domain.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *mockStore) batch(id string) domain.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[id]
}

func (m *mockStore) record(id string) domain.ProductionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

// committedSum recomputes the units of every counting order on the slot.
func (m *mockStore) committedSum(slotID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, o := range m.orders {
		if o.SlotID == slotID && o.Status.Counts() {
			sum += o.UnitQuantity()
		}
	}
	return sum
}

func (m *mockStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockStore) GetSlot(ctx context.Context, id string) (*domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *mockStore) ListSlots(ctx context.Context) ([]domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStore) ListAvailableOrders(ctx context.Context, date time.Time) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		slot, ok := m.slots[o.SlotID]
		if !ok || !slot.Date.Equal(date) {
			continue
		}
		if o.Status != domain.OrderStatusSubmitted && o.Status != domain.OrderStatusConfirmed {
			continue
		}
		if m.orderOnAnyBatchLocked(o.ID) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *mockStore) orderOnAnyBatchLocked(orderID string) bool {
	for _, b := range m.batches {
		for _, item := range b.Items {
			if item.OrderID == orderID {
				return true
			}
		}
	}
	return false
}

func (m *mockStore) ApplyTransitions(ctx context.Context, ts []domain.OrderTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyTransitionsLocked(ts)
}

func (m *mockStore) applyTransitionsLocked(ts []domain.OrderTransition) error {
	// Validate everything first so a failure applies nothing.
	for _, t := range ts {
		o, ok := m.orders[t.OrderID]
		if !ok || o.Status != t.From {
			return port.ErrConflict
		}
		if t.Delta != 0 {
			if _, ok := m.slots[t.SlotID]; !ok {
				return fmt.Errorf("slot %s not found for order %s", t.SlotID, t.OrderID)
			}
		}
	}
	for _, t := range ts {
		o := m.orders[t.OrderID]
		o.Status = t.To
		m.orders[t.OrderID] = o
		if t.Delta != 0 {
			s := m.slots[t.SlotID]
			s.CommittedCount += t.Delta
			if s.CommittedCount < 0 {
				s.CommittedCount = 0
			}
			m.slots[t.SlotID] = s
		}
	}
	return nil
}

func (m *mockStore) CreateBatch(ctx context.Context, b domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
	return nil
}

func (m *mockStore) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, nil
	}
	items := make([]domain.BatchItem, len(b.Items))
	copy(items, b.Items)
	b.Items = items
	return &b, nil
}

func (m *mockStore) AssignOrder(ctx context.Context, batchID string, items []domain.BatchItem, t domain.OrderTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.draftBatchLocked(batchID)
	if err != nil {
		return err
	}
	if err := m.applyTransitionsLocked([]domain.OrderTransition{t}); err != nil {
		return err
	}
	b.Items = append(b.Items, items...)
	m.batches[batchID] = *b
	return nil
}

func (m *mockStore) UnassignOrder(ctx context.Context, batchID, orderID string, t domain.OrderTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.draftBatchLocked(batchID)
	if err != nil {
		return err
	}
	kept := make([]domain.BatchItem, 0, len(b.Items))
	removed := 0
	for _, item := range b.Items {
		if item.OrderID == orderID {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed == 0 {
		return port.ErrConflict
	}
	if err := m.applyTransitionsLocked([]domain.OrderTransition{t}); err != nil {
		return err
	}
	b.Items = kept
	m.batches[batchID] = *b
	return nil
}

func (m *mockStore) AddBatchItem(ctx context.Context, item domain.BatchItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.draftBatchLocked(item.BatchID)
	if err != nil {
		return err
	}
	b.Items = append(b.Items, item)
	m.batches[item.BatchID] = *b
	return nil
}

func (m *mockStore) UpdateExtraQuantity(ctx context.Context, batchID, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.draftBatchLocked(batchID)
	if err != nil {
		return err
	}
	for i, item := range b.Items {
		if item.ID == itemID && item.IsExtra() {
			b.Items[i].PlannedQuantity = quantity
			m.batches[batchID] = *b
			return nil
		}
	}
	return port.ErrConflict
}

func (m *mockStore) RemoveExtra(ctx context.Context, batchID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.draftBatchLocked(batchID)
	if err != nil {
		return err
	}
	for i, item := range b.Items {
		if item.ID == itemID && item.IsExtra() {
			b.Items = append(b.Items[:i], b.Items[i+1:]...)
			m.batches[batchID] = *b
			return nil
		}
	}
	return port.ErrConflict
}

func (m *mockStore) FinalizeBatch(ctx context.Context, fin domain.BatchFinalization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.draftBatchLocked(fin.BatchID)
	if err != nil {
		return err
	}
	if err := m.applyTransitionsLocked(fin.Transitions); err != nil {
		return err
	}
	for _, rec := range fin.Records {
		m.records[rec.ID] = rec
	}
	b.Status = domain.BatchStatusCompleted
	b.CompletedAt = &fin.CompletedAt
	b.CompletedBy = fin.CompletedBy
	m.batches[fin.BatchID] = *b
	return nil
}

func (m *mockStore) GetRecord(ctx context.Context, id string) (*domain.ProductionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockStore) UpdateRecordDisposition(ctx context.Context, id string, d domain.Disposition, salePriceCents int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return port.ErrConflict
	}
	rec.Disposition = d
	rec.SalePriceCents = salePriceCents
	m.records[id] = rec
	return nil
}

func (m *mockStore) SplitRecord(ctx context.Context, parentID string, sibling domain.ProductionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, ok := m.records[parentID]
	if !ok || parent.Quantity <= sibling.Quantity {
		return port.ErrConflict
	}
	parent.Quantity -= sibling.Quantity
	m.records[parentID] = parent
	m.records[sibling.ID] = sibling
	return nil
}

func (m *mockStore) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, entry)
	return nil
}

func (m *mockStore) draftBatchLocked(batchID string) (*domain.Batch, error) {
	b, ok := m.batches[batchID]
	if !ok || b.Status != domain.BatchStatusDraft {
		return nil, port.ErrConflict
	}
	return &b, nil
}

// mockCache is an in-memory port.CacheRepository.
type mockCache struct {
	mu    sync.Mutex
	slots map[string][2]int // capacity, committed
}

func newMockCache() *mockCache {
	return &mockCache{slots: make(map[string][2]int)}
}

func (c *mockCache) SetSlot(ctx context.Context, slotID string, capacity, committed int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[slotID] = [2]int{capacity, committed}
	return nil
}

func (c *mockCache) AdjustCommitted(ctx context.Context, slotID string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.slots[slotID]
	if !ok {
		return nil
	}
	v[1] += delta
	if v[1] < 0 {
		v[1] = 0
	}
	c.slots[slotID] = v
	return nil
}

func (c *mockCache) GetSlot(ctx context.Context, slotID string) (int, int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.slots[slotID]
	if !ok {
		return 0, 0, false, nil
	}
	return v[0], v[1], true, nil
}

// newTestServices wires the three services over one mock store. The store
// doubles as the audit sink; t.Cleanup drains the trail.
func newTestServices(t interface{ Cleanup(func()) }, store *mockStore) (*OrderService, *BatchService, *TrackingService) {
	audit := NewAuditTrail(store, 256, 1)
	t.Cleanup(audit.Close)
	orders := NewOrderService(store, newMockCache(), audit)
	batches := NewBatchService(store, orders, audit)
	tracking := NewTrackingService(store, audit)
	return orders, batches, tracking
}
