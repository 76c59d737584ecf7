package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/core/domain"
	"github.com/sirSUPA013/covenant-acres-farmstand-sub001/internal/port"
)

// MySQLAdapter implements port.DatabaseRepository and port.AuditSink on a
// relational store. Every multi-entity unit of work runs in one transaction;
// lifecycle guards are expressed as conditional writes so a concurrent
// change rolls the whole unit back with port.ErrConflict.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, slot_id, customer, status, line_items, total_cents, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (m *MySQLAdapter) GetSlot(ctx context.Context, id string) (*domain.Slot, error) {
	var s domain.Slot
	err := m.db.QueryRowContext(ctx, `
		SELECT id, slot_date, location, capacity, committed_count, is_open, created_at, updated_at
		FROM slots WHERE id = ?`, id,
	).Scan(&s.ID, &s.Date, &s.Location, &s.Capacity, &s.CommittedCount, &s.Open, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query slot: %w", err)
	}
	return &s, nil
}

func (m *MySQLAdapter) ListSlots(ctx context.Context) ([]domain.Slot, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, slot_date, location, capacity, committed_count, is_open, created_at, updated_at
		FROM slots`)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var s domain.Slot
		if err := rows.Scan(&s.ID, &s.Date, &s.Location, &s.Capacity, &s.CommittedCount, &s.Open, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (m *MySQLAdapter) ListAvailableOrders(ctx context.Context, date time.Time) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT o.id, o.slot_id, o.customer, o.status, o.line_items, o.total_cents, o.created_at, o.updated_at
		FROM orders o
		JOIN slots s ON s.id = o.slot_id
		WHERE s.slot_date = ?
		  AND o.status IN (?, ?)
		  AND NOT EXISTS (SELECT 1 FROM batch_items bi WHERE bi.order_id = o.id)
		ORDER BY o.customer, o.id`,
		date.Format("2006-01-02"), domain.OrderStatusSubmitted, domain.OrderStatusConfirmed,
	)
	if err != nil {
		return nil, fmt.Errorf("query available orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) ApplyTransitions(ctx context.Context, ts []domain.OrderTransition) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range ts {
		if err := applyTransitionTx(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *MySQLAdapter) CreateBatch(ctx context.Context, b domain.Batch) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO batches (id, target_date, status, completed_at, completed_by, created_at, updated_at)
		VALUES (?, ?, ?, NULL, '', ?, ?)`,
		b.ID, b.TargetDate.Format("2006-01-02"), b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var b domain.Batch
	var completedAt sql.NullTime
	err := m.db.QueryRowContext(ctx, `
		SELECT id, target_date, status, completed_at, completed_by, created_at, updated_at
		FROM batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.TargetDate, &b.Status, &completedAt, &b.CompletedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, batch_id, order_id, customer, flavor_id, flavor, planned_qty
		FROM batch_items WHERE batch_id = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("query batch items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.BatchItem
		var orderID sql.NullString
		if err := rows.Scan(&item.ID, &item.BatchID, &orderID, &item.Customer, &item.FlavorID, &item.Flavor, &item.PlannedQuantity); err != nil {
			return nil, fmt.Errorf("scan batch item: %w", err)
		}
		item.OrderID = orderID.String
		b.Items = append(b.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *MySQLAdapter) AssignOrder(ctx context.Context, batchID string, items []domain.BatchItem, t domain.OrderTransition) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockDraftBatch(ctx, tx, batchID); err != nil {
		return err
	}
	for _, item := range items {
		if err := insertBatchItemTx(ctx, tx, item); err != nil {
			return err
		}
	}
	if err := applyTransitionTx(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) UnassignOrder(ctx context.Context, batchID, orderID string, t domain.OrderTransition) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockDraftBatch(ctx, tx, batchID); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `
		DELETE FROM batch_items WHERE batch_id = ? AND order_id = ?`, batchID, orderID)
	if err != nil {
		return fmt.Errorf("delete batch items: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}
	if err := applyTransitionTx(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) AddBatchItem(ctx context.Context, item domain.BatchItem) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockDraftBatch(ctx, tx, item.BatchID); err != nil {
		return err
	}
	if err := insertBatchItemTx(ctx, tx, item); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) UpdateExtraQuantity(ctx context.Context, batchID, itemID string, quantity int) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockDraftBatch(ctx, tx, batchID); err != nil {
		return err
	}
	var one int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM batch_items
		WHERE id = ? AND batch_id = ? AND order_id IS NULL FOR UPDATE`, itemID, batchID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("lock batch item: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE batch_items SET planned_qty = ? WHERE id = ?`, quantity, itemID); err != nil {
		return fmt.Errorf("update batch item: %w", err)
	}
	return tx.Commit()
}

func (m *MySQLAdapter) RemoveExtra(ctx context.Context, batchID, itemID string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockDraftBatch(ctx, tx, batchID); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `
		DELETE FROM batch_items WHERE id = ? AND batch_id = ? AND order_id IS NULL`, itemID, batchID)
	if err != nil {
		return fmt.Errorf("delete batch item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}
	return tx.Commit()
}

func (m *MySQLAdapter) FinalizeBatch(ctx context.Context, fin domain.BatchFinalization) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE batches SET status = ?, completed_at = ?, completed_by = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		domain.BatchStatusCompleted, fin.CompletedAt, fin.CompletedBy, fin.CompletedAt,
		fin.BatchID, domain.BatchStatusDraft,
	)
	if err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}

	for _, rec := range fin.Records {
		if err := insertRecordTx(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, t := range fin.Transitions {
		if err := applyTransitionTx(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *MySQLAdapter) GetRecord(ctx context.Context, id string) (*domain.ProductionRecord, error) {
	var rec domain.ProductionRecord
	var orderID, parentID sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT id, batch_id, order_id, parent_id, flavor_id, flavor, quantity, disposition, sale_price_cents, created_at, updated_at
		FROM production_records WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.BatchID, &orderID, &parentID, &rec.FlavorID, &rec.Flavor,
		&rec.Quantity, &rec.Disposition, &rec.SalePriceCents, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	rec.OrderID = orderID.String
	rec.ParentID = parentID.String
	return &rec, nil
}

func (m *MySQLAdapter) UpdateRecordDisposition(ctx context.Context, id string, d domain.Disposition, salePriceCents int) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE production_records SET disposition = ?, sale_price_cents = ?, updated_at = NOW()
		WHERE id = ?`, d, salePriceCents, id)
	if err != nil {
		return fmt.Errorf("update record disposition: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SplitRecord(ctx context.Context, parentID string, sibling domain.ProductionRecord) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE production_records SET quantity = quantity - ?, updated_at = NOW()
		WHERE id = ? AND quantity > ?`,
		sibling.Quantity, parentID, sibling.Quantity,
	)
	if err != nil {
		return fmt.Errorf("shrink parent record: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrConflict
	}
	if err := insertRecordTx(ctx, tx, sibling); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendAudit implements port.AuditSink.
func (m *MySQLAdapter) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, entity, entity_id, detail, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, entry.Detail, entry.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// applyTransitionTx writes one order status change and its slot counter
// delta inside tx. The status write is guarded on the status the caller read;
// a no-op write (same status, no delta) is skipped so MySQL's zero
// rows-affected on unchanged values is not mistaken for a conflict.
func applyTransitionTx(ctx context.Context, tx *sql.Tx, t domain.OrderTransition) error {
	if t.From == t.To && t.Delta == 0 {
		return nil
	}
	if t.From != t.To {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = ?, updated_at = NOW()
			WHERE id = ? AND status = ?`, t.To, t.OrderID, t.From)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return port.ErrConflict
		}
	}
	if t.Delta != 0 {
		// Existence check plus row lock; the decrement floors at zero so a
		// stale counter never goes negative.
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ? FOR UPDATE`, t.SlotID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("slot %s not found for order %s", t.SlotID, t.OrderID)
		}
		if err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE slots SET committed_count = GREATEST(committed_count + ?, 0), updated_at = NOW()
			WHERE id = ?`, t.Delta, t.SlotID); err != nil {
			return fmt.Errorf("update slot committed count: %w", err)
		}
	}
	return nil
}

// lockDraftBatch locks the batch row and confirms it is still draft. The
// service has already produced a friendly state error from its own read;
// this guard only catches the race where the batch completed in between.
func lockDraftBatch(ctx context.Context, tx *sql.Tx, batchID string) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM batches WHERE id = ? FOR UPDATE`, batchID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}
	if domain.BatchStatus(status) != domain.BatchStatusDraft {
		return port.ErrConflict
	}
	return nil
}

func insertBatchItemTx(ctx context.Context, tx *sql.Tx, item domain.BatchItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO batch_items (id, batch_id, order_id, customer, flavor_id, flavor, planned_qty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW())`,
		item.ID, item.BatchID, nullable(item.OrderID), item.Customer, item.FlavorID, item.Flavor, item.PlannedQuantity,
	)
	if err != nil {
		return fmt.Errorf("insert batch item: %w", err)
	}
	return nil
}

func insertRecordTx(ctx context.Context, tx *sql.Tx, rec domain.ProductionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO production_records
			(id, batch_id, order_id, parent_id, flavor_id, flavor, quantity, disposition, sale_price_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.BatchID, nullable(rec.OrderID), nullable(rec.ParentID), rec.FlavorID, rec.Flavor,
		rec.Quantity, rec.Disposition, rec.SalePriceCents, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert production record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var rawLines []byte
	if err := row.Scan(&o.ID, &o.SlotID, &o.Customer, &o.Status, &rawLines, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Lines, o.LinesOK = domain.ParseLineItems(rawLines)
	return &o, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
