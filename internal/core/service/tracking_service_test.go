package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
)

func seedRecord(store *mockStore, id string, quantity int) {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := time.Now()
	store.records[id] = domain.ProductionRecord{
		ID: id, BatchID: "batch-1", OrderID: "o-1",
		FlavorID: "f-r", Flavor: "rye", Quantity: quantity,
		Disposition: domain.DispositionPending,
		CreatedAt:   now, UpdatedAt: now,
	}
}

func TestSplit_QuantityConservedAcrossTree(t *testing.T) {
	store := newMockStore()
	seedRecord(store, "rec-1", 10)
	_, _, tracking := newTestServices(t, store)
	ctx := context.Background()

	first, err := tracking.Split(ctx, "baker", "rec-1", 3, domain.DispositionWasted)
	if err != nil {
		t.Fatalf("first split failed: %v", err)
	}
	second, err := tracking.Split(ctx, "baker", "rec-1", 4, domain.DispositionSold)
	if err != nil {
		t.Fatalf("second split failed: %v", err)
	}
	third, err := tracking.Split(ctx, "baker", first.ID, 1, domain.DispositionGifted)
	if err != nil {
		t.Fatalf("split of a split failed: %v", err)
	}

	total := 0
	for _, id := range []string{"rec-1", first.ID, second.ID, third.ID} {
		total += store.record(id).Quantity
	}
	if total != 10 {
		t.Errorf("quantity not conserved: tree sums to %d, want 10", total)
	}
	if third.ParentID != first.ID {
		t.Errorf("lineage lost: expected parent %s, got %s", first.ID, third.ParentID)
	}
	if first.BatchID != "batch-1" || first.OrderID != "o-1" || first.Flavor != "rye" {
		t.Error("sibling must keep the parent's batch, order, and flavor references")
	}
}

func TestSplit_ValidationBounds(t *testing.T) {
	store := newMockStore()
	seedRecord(store, "rec-1", 5)
	_, _, tracking := newTestServices(t, store)
	ctx := context.Background()

	var validation domain.ValidationError
	for _, qty := range []int{0, -2, 5, 6} {
		_, err := tracking.Split(ctx, "baker", "rec-1", qty, domain.DispositionSold)
		if !errors.As(err, &validation) {
			t.Errorf("split quantity %d: expected validation error, got %v", qty, err)
		}
	}
	if got := store.record("rec-1").Quantity; got != 5 {
		t.Errorf("rejected splits must leave the record at 5 units, got %d", got)
	}
}

func TestSplit_RecordNotFound(t *testing.T) {
	store := newMockStore()
	_, _, tracking := newTestServices(t, store)

	_, err := tracking.Split(context.Background(), "baker", "ghost", 1, domain.DispositionSold)
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestUpdateDisposition_RedispositionAllowed(t *testing.T) {
	store := newMockStore()
	seedRecord(store, "rec-1", 5)
	_, _, tracking := newTestServices(t, store)
	ctx := context.Background()

	steps := []domain.Disposition{
		domain.DispositionSold,
		domain.DispositionWasted,
		domain.DispositionPersonal,
		domain.DispositionSold,
	}
	for _, d := range steps {
		if err := tracking.UpdateDisposition(ctx, "baker", "rec-1", d, 0); err != nil {
			t.Fatalf("re-disposing to %s failed: %v", d, err)
		}
	}
	if got := store.record("rec-1").Disposition; got != domain.DispositionSold {
		t.Errorf("expected sold, got %s", got)
	}
}

func TestUpdateDisposition_SalePriceOnlySticksWhenSold(t *testing.T) {
	store := newMockStore()
	seedRecord(store, "rec-1", 5)
	_, _, tracking := newTestServices(t, store)
	ctx := context.Background()

	if err := tracking.UpdateDisposition(ctx, "baker", "rec-1", domain.DispositionSold, 450); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if got := store.record("rec-1").SalePriceCents; got != 450 {
		t.Errorf("expected sale price 450, got %d", got)
	}

	if err := tracking.UpdateDisposition(ctx, "baker", "rec-1", domain.DispositionWasted, 450); err != nil {
		t.Fatalf("waste failed: %v", err)
	}
	if got := store.record("rec-1").SalePriceCents; got != 0 {
		t.Errorf("non-sold disposition must zero the price, got %d", got)
	}
}

func TestUpdateDisposition_Validation(t *testing.T) {
	store := newMockStore()
	seedRecord(store, "rec-1", 5)
	_, _, tracking := newTestServices(t, store)
	ctx := context.Background()

	var validation domain.ValidationError
	if err := tracking.UpdateDisposition(ctx, "baker", "rec-1", domain.Disposition("evaporated"), 0); !errors.As(err, &validation) {
		t.Errorf("expected validation error for unknown disposition, got %v", err)
	}
	if err := tracking.UpdateDisposition(ctx, "baker", "rec-1", domain.DispositionSold, -1); !errors.As(err, &validation) {
		t.Errorf("expected validation error for negative price, got %v", err)
	}
}
