package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo provides persistence for events. It never touches
// available_tickets after the insert; that column belongs to
// InventoryRepo.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, title, description, starts_at, total_tickets, available_tickets,
	normal_price, vip_price, created_at, updated_at`

// Create inserts e with available_tickets equal to total_tickets and
// fills in the generated id and timestamps.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (title, description, starts_at, total_tickets, available_tickets, normal_price, vip_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.Title, nullString(e.Description), e.StartsAt.UTC(),
		e.TotalTickets, e.TotalTickets, e.NormalPrice, e.VIPPrice)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*e = created
	return nil
}

// GetByID fetches a single event.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	e, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return e, err
}

// Summary aggregates quantities and amounts of the event's purchases
// per status.
func (r *EventRepo) Summary(ctx context.Context, eventID uint64) (model.PurchaseTotals, error) {
	const q = `SELECT
		COALESCE(SUM(CASE WHEN status = 'PENDING' THEN quantity END), 0),
		COALESCE(SUM(CASE WHEN status = 'PENDING' THEN total_amount END), 0),
		COALESCE(SUM(CASE WHEN status = 'VALIDATED' THEN total_amount END), 0)
		FROM purchases WHERE event_id = ?`
	var t model.PurchaseTotals
	err := r.db.QueryRowContext(ctx, q, eventID).Scan(&t.PendingQuantity, &t.PendingAmount, &t.ValidatedAmount)
	return t, err
}

// Inventories derives every event's counter from its committed
// purchases rather than from available_tickets.
func (r *EventRepo) Inventories(ctx context.Context) ([]model.Inventory, error) {
	const q = `SELECT e.id, e.total_tickets,
		e.total_tickets - COALESCE(SUM(CASE WHEN p.status IN ('PENDING', 'VALIDATED') THEN p.quantity END), 0)
		FROM events e LEFT JOIN purchases p ON p.event_id = e.id
		GROUP BY e.id, e.total_tickets ORDER BY e.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Inventory
	for rows.Next() {
		var inv model.Inventory
		if err := rows.Scan(&inv.EventID, &inv.Total, &inv.Available); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MirrorInventory copies counters kept by an external ledger store into
// the events row, so the table stays the durable record of capacity.
func (r *EventRepo) MirrorInventory(ctx context.Context, inv model.Inventory) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET total_tickets = ?, available_tickets = ? WHERE id = ?`,
		inv.Total, inv.Available, inv.EventID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, inv.EventID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	return nil
}

// DeleteIfUnused removes an event together with its cancelled purchases.
// It returns ErrConflict while PENDING or VALIDATED purchases reference
// the event. The event row is locked for the duration of the check so a
// concurrent purchase cannot slip in between the count and the delete.
func (r *EventRepo) DeleteIfUnused(ctx context.Context, id uint64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ? FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return err
		}
		var committed int
		const cnt = `SELECT COUNT(*) FROM purchases WHERE event_id = ? AND status IN ('PENDING', 'VALIDATED')`
		if err := tx.QueryRowContext(ctx, cnt, id).Scan(&committed); err != nil {
			return err
		}
		if committed > 0 {
			return fmt.Errorf("%w: %d committed purchases", ErrConflict, committed)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
			return err
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e    model.Event
		desc sql.NullString
	)
	err := row.Scan(&e.ID, &e.Title, &desc, &e.StartsAt, &e.TotalTickets, &e.AvailableTickets,
		&e.NormalPrice, &e.VIPPrice, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Event{}, err
	}
	e.Description = desc.String
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
