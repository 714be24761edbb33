package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

var (
	reserveSQL  = regexp.QuoteMeta("LAST_INSERT_ID(available_tickets - ?)")
	releaseSQL  = regexp.QuoteMeta("LAST_INSERT_ID(available_tickets + ?)")
	resizeSQL   = regexp.QuoteMeta("LAST_INSERT_ID(available_tickets + (? - total_tickets))")
	snapshotSQL = regexp.QuoteMeta("SELECT total_tickets, available_tickets FROM events WHERE id = ?")
)

func newInventoryRepo(t *testing.T) (*InventoryRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewInventoryRepo(db), mock
}

func TestInventoryRepoReserveGranted(t *testing.T) {
	repo, mock := newInventoryRepo(t)
	mock.ExpectExec(reserveSQL).WithArgs(6, uint64(1), 6).WillReturnResult(sqlmock.NewResult(4, 1))

	res, err := repo.Reserve(context.Background(), 1, 6)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 4, res.Available)
}

func TestInventoryRepoReserveSoldOut(t *testing.T) {
	repo, mock := newInventoryRepo(t)
	mock.ExpectExec(reserveSQL).WithArgs(5, uint64(1), 5).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(snapshotSQL).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"total_tickets", "available_tickets"}).AddRow(10, 4))

	res, err := repo.Reserve(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, model.RefusalSoldOut, res.Reason)
	assert.Equal(t, 4, res.Available)
}

func TestInventoryRepoReserveMissingEvent(t *testing.T) {
	repo, mock := newInventoryRepo(t)
	mock.ExpectExec(reserveSQL).WithArgs(1, uint64(9), 1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(snapshotSQL).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"total_tickets", "available_tickets"}))

	res, err := repo.Reserve(context.Background(), 9, 1)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, model.RefusalNoEvent, res.Reason)
}

func TestInventoryRepoReserveStorageFault(t *testing.T) {
	repo, mock := newInventoryRepo(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(reserveSQL).WillReturnError(boom)

	_, err := repo.Reserve(context.Background(), 1, 1)
	assert.ErrorIs(t, err, boom)
}

func TestInventoryRepoRelease(t *testing.T) {
	repo, mock := newInventoryRepo(t)
	mock.ExpectExec(releaseSQL).WithArgs(6, uint64(1)).WillReturnResult(sqlmock.NewResult(10, 1))

	left, err := repo.Release(context.Background(), 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 10, left)
}

func TestInventoryRepoReleaseMissingEvent(t *testing.T) {
	repo, mock := newInventoryRepo(t)
	mock.ExpectExec(releaseSQL).WithArgs(6, uint64(1)).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Release(context.Background(), 1, 6)
	assert.ErrorIs(t, err, model.ErrNoInventory)
}

func TestInventoryRepoResize(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		repo, mock := newInventoryRepo(t)
		mock.ExpectExec(resizeSQL).WithArgs(20, 20, uint64(1), 20).WillReturnResult(sqlmock.NewResult(14, 1))

		res, err := repo.Resize(context.Background(), 1, 20)
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, model.Inventory{EventID: 1, Total: 20, Available: 14}, res.Inventory)
		assert.Equal(t, 6, res.Committed)
	})

	t.Run("below committed", func(t *testing.T) {
		repo, mock := newInventoryRepo(t)
		mock.ExpectExec(resizeSQL).WithArgs(5, 5, uint64(1), 5).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(snapshotSQL).WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"total_tickets", "available_tickets"}).AddRow(10, 4))

		res, err := repo.Resize(context.Background(), 1, 5)
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, 6, res.Committed)
	})

	t.Run("unchanged total", func(t *testing.T) {
		repo, mock := newInventoryRepo(t)
		mock.ExpectExec(resizeSQL).WithArgs(10, 10, uint64(1), 10).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(snapshotSQL).WithArgs(uint64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"total_tickets", "available_tickets"}).AddRow(10, 4))

		res, err := repo.Resize(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, 4, res.Inventory.Available)
	})

	t.Run("missing event", func(t *testing.T) {
		repo, mock := newInventoryRepo(t)
		mock.ExpectExec(resizeSQL).WithArgs(10, 10, uint64(3), 10).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(snapshotSQL).WithArgs(uint64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"total_tickets", "available_tickets"}))

		res, err := repo.Resize(context.Background(), 3, 10)
		require.NoError(t, err)
		assert.True(t, res.Missing)
	})
}
