package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// PurchaseRepo provides persistence for purchases. Status changes go
// through UpdateStatus only; the inventory side of a transition is the
// caller's responsibility.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

const purchaseColumns = `id, unique_ticket_id, user_id, event_id, quantity, ticket_type,
	total_amount, status, payment_proof, created_at, updated_at`

// Create inserts p and populates its generated ID. A collision on
// unique_ticket_id is reported as ErrDuplicateTicketID.
func (r *PurchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	const q = `INSERT INTO purchases
		(unique_ticket_id, user_id, event_id, quantity, ticket_type, total_amount, status, payment_proof, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var proof sql.NullString
	if p.PaymentProof != nil {
		proof = sql.NullString{String: *p.PaymentProof, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q, p.UniqueTicketID, p.UserID, p.EventID, p.Quantity,
		string(p.TicketType), p.TotalAmount, string(p.Status), proof, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateTicketID
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID fetches a single purchase.
func (r *PurchaseRepo) GetByID(ctx context.Context, id uint64) (model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = ?`
	p, err := scanPurchase(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Purchase{}, ErrPurchaseNotFound
	}
	return p, err
}

// UpdateStatus writes the new status of a purchase.
func (r *PurchaseRepo) UpdateStatus(ctx context.Context, id uint64, status model.PurchaseStatus, at time.Time) error {
	const q = `UPDATE purchases SET status = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, string(status), at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

// ListByUser returns the purchases of one user, newest first.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q, userID)
}

// List returns every purchase, newest first.
func (r *PurchaseRepo) List(ctx context.Context) ([]model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases ORDER BY created_at DESC, id DESC`
	return r.list(ctx, q)
}

// DeleteCancelledByUser removes the CANCELLED purchases of a user and
// returns how many rows were deleted. Cancelled purchases hold no
// inventory, so no counter changes.
func (r *PurchaseRepo) DeleteCancelledByUser(ctx context.Context, userID uint64) (int64, error) {
	const q = `DELETE FROM purchases WHERE user_id = ? AND status = 'CANCELLED'`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PurchaseRepo) list(ctx context.Context, q string, args ...any) ([]model.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Purchase, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPurchase(row rowScanner) (model.Purchase, error) {
	var (
		p      model.Purchase
		tt, st string
		proof  sql.NullString
	)
	err := row.Scan(&p.ID, &p.UniqueTicketID, &p.UserID, &p.EventID, &p.Quantity, &tt,
		&p.TotalAmount, &st, &proof, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Purchase{}, err
	}
	p.TicketType = model.TicketType(tt)
	p.Status = model.PurchaseStatus(st)
	if proof.Valid {
		v := proof.String
		p.PaymentProof = &v
	}
	return p, nil
}
