package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func newPurchaseRepo(t *testing.T) (*PurchaseRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPurchaseRepo(db), mock
}

func samplePurchase() *model.Purchase {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.Purchase{
		UniqueTicketID: "TKT-7-1-ABC-XYZ",
		UserID:         7,
		EventID:        1,
		Quantity:       2,
		TicketType:     model.TicketVIP,
		TotalAmount:    decimal.RequireFromString("51.00"),
		Status:         model.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPurchaseRepoCreate(t *testing.T) {
	repo, mock := newPurchaseRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).WillReturnResult(sqlmock.NewResult(42, 1))

	p := samplePurchase()
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, uint64(42), p.ID)
}

func TestPurchaseRepoCreateDuplicateTicket(t *testing.T) {
	repo, mock := newPurchaseRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_purchases_ticket'"})

	err := repo.Create(context.Background(), samplePurchase())
	assert.ErrorIs(t, err, ErrDuplicateTicketID)
}

func TestPurchaseRepoGetByID(t *testing.T) {
	repo, mock := newPurchaseRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"id", "unique_ticket_id", "user_id", "event_id", "quantity", "ticket_type",
		"total_amount", "status", "payment_proof", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id = ?")).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(42, "TKT-7-1-ABC-XYZ", 7, 1, 2, "VIP", "51.00", "VALIDATED", "proofs/42.png", now, now))

	p, err := repo.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, model.StatusValidated, p.Status)
	assert.Equal(t, model.TicketVIP, p.TicketType)
	assert.True(t, p.TotalAmount.Equal(decimal.RequireFromString("51")))
	require.NotNil(t, p.PaymentProof)
	assert.Equal(t, "proofs/42.png", *p.PaymentProof)
}

func TestPurchaseRepoGetByIDMissing(t *testing.T) {
	repo, mock := newPurchaseRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id = ?")).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestPurchaseRepoUpdateStatusMissing(t *testing.T) {
	repo, mock := newPurchaseRepo(t)
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET status = ?, updated_at = ? WHERE id = ?")).
		WithArgs("CANCELLED", at, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 5, model.StatusCancelled, at)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestPurchaseRepoDeleteCancelledByUser(t *testing.T) {
	repo, mock := newPurchaseRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM purchases WHERE user_id = ? AND status = 'CANCELLED'")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteCancelledByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
