package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// InventoryRepo is the MySQL ledger store. Every mutation of
// events.available_tickets is a single conditional UPDATE, so concurrent
// writers (other processes included) are serialized by the row lock of
// the storage engine rather than by anything held in this process.
//
// The updates wrap the new counter in LAST_INSERT_ID(expr), which makes
// MySQL report it back through the OK packet of the same statement; the
// value read back is therefore the one this write produced.
type InventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to db.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// Reserve decrements available_tickets by qty if at least qty remain.
// A refusal is reported in the result, not as an error.
func (r *InventoryRepo) Reserve(ctx context.Context, eventID uint64, qty int) (model.ReserveResult, error) {
	const q = `UPDATE events
		SET available_tickets = LAST_INSERT_ID(available_tickets - ?)
		WHERE id = ? AND available_tickets >= ?`
	res, err := r.db.ExecContext(ctx, q, qty, eventID, qty)
	if err != nil {
		return model.ReserveResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.ReserveResult{}, err
	}
	if n == 0 {
		inv, err := r.Snapshot(ctx, eventID)
		if errors.Is(err, model.ErrNoInventory) {
			return model.ReserveResult{Reason: model.RefusalNoEvent}, nil
		}
		if err != nil {
			return model.ReserveResult{}, err
		}
		return model.ReserveResult{Available: inv.Available, Reason: model.RefusalSoldOut}, nil
	}
	left, err := res.LastInsertId()
	if err != nil {
		return model.ReserveResult{}, err
	}
	return model.ReserveResult{OK: true, Available: int(left)}, nil
}

// Release adds qty back to available_tickets. The CHECK constraint on
// events rejects a release that would exceed total_tickets.
func (r *InventoryRepo) Release(ctx context.Context, eventID uint64, qty int) (int, error) {
	const q = `UPDATE events
		SET available_tickets = LAST_INSERT_ID(available_tickets + ?)
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, qty, eventID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, model.ErrNoInventory
	}
	left, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(left), nil
}

// Resize sets total_tickets to total while keeping the committed quantity
// (total - available) unchanged. MySQL evaluates SET assignments left to
// right, so available_tickets is computed from the old total first.
func (r *InventoryRepo) Resize(ctx context.Context, eventID uint64, total int) (model.ResizeResult, error) {
	const q = `UPDATE events
		SET available_tickets = LAST_INSERT_ID(available_tickets + (? - total_tickets)),
		    total_tickets = ?
		WHERE id = ? AND ? >= total_tickets - available_tickets`
	res, err := r.db.ExecContext(ctx, q, total, total, eventID, total)
	if err != nil {
		return model.ResizeResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.ResizeResult{}, err
	}
	if n == 1 {
		left, err := res.LastInsertId()
		if err != nil {
			return model.ResizeResult{}, err
		}
		inv := model.Inventory{EventID: eventID, Total: total, Available: int(left)}
		return model.ResizeResult{OK: true, Inventory: inv, Committed: inv.Committed()}, nil
	}
	// No row changed: the event is missing, the new total is below the
	// committed quantity, or the total did not change at all.
	inv, err := r.Snapshot(ctx, eventID)
	if errors.Is(err, model.ErrNoInventory) {
		return model.ResizeResult{Missing: true}, nil
	}
	if err != nil {
		return model.ResizeResult{}, err
	}
	return model.ResizeResult{OK: inv.Total == total, Inventory: inv, Committed: inv.Committed()}, nil
}

// Snapshot reads the current counter of an event.
func (r *InventoryRepo) Snapshot(ctx context.Context, eventID uint64) (model.Inventory, error) {
	const q = `SELECT total_tickets, available_tickets FROM events WHERE id = ?`
	inv := model.Inventory{EventID: eventID}
	err := r.db.QueryRowContext(ctx, q, eventID).Scan(&inv.Total, &inv.Available)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Inventory{}, model.ErrNoInventory
	}
	if err != nil {
		return model.Inventory{}, err
	}
	return inv, nil
}
