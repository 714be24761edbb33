package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/testutil"
)

func TestLedger_ReserveReleaseConservation(t *testing.T) {
	t.Parallel()

	direct := testutil.NewStore()
	directID := direct.AddEvent(10, "10", "20")
	roundTrip := testutil.NewStore()
	roundTripID := roundTrip.AddEvent(10, "10", "20")

	ctx := context.Background()
	_, err := NewLedger(direct.Inventory(), nil).Reserve(ctx, directID, 4)
	require.NoError(t, err)

	l := NewLedger(roundTrip.Inventory(), nil)
	_, err = l.Reserve(ctx, roundTripID, 4)
	require.NoError(t, err)
	_, err = l.Release(ctx, roundTripID, 4)
	require.NoError(t, err)
	res, err := l.Reserve(ctx, roundTripID, 4)
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, direct.Available(directID), roundTrip.Available(roundTripID))
	assert.Equal(t, 6, res.Available)
}

func TestLedger_ReserveRefusals(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore()
	id := store.AddEvent(3, "10", "20")
	l := NewLedger(store.Inventory(), nil)
	ctx := context.Background()

	res, err := l.Reserve(ctx, id, 4)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, model.RefusalSoldOut, res.Reason)
	assert.Equal(t, 3, store.Available(id))

	res, err = l.Reserve(ctx, 999, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RefusalNoEvent, res.Reason)

	_, err = l.Reserve(ctx, id, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = l.Release(ctx, id, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLedger_ReleaseMissingEvent(t *testing.T) {
	t.Parallel()

	l := NewLedger(testutil.NewStore().Inventory(), nil)
	_, err := l.Release(context.Background(), 5, 1)
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = l.Snapshot(context.Background(), 5)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestLedger_Resize(t *testing.T) {
	t.Parallel()

	store := testutil.NewStore()
	id := store.AddEvent(10, "10", "20")
	l := NewLedger(store.Inventory(), nil)
	ctx := context.Background()

	_, err := l.Reserve(ctx, id, 6)
	require.NoError(t, err)

	res, err := l.Resize(ctx, id, 5)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, 6, res.Committed)
	assert.Equal(t, 4, store.Available(id))

	res, err = l.Resize(ctx, id, 8)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, model.Inventory{EventID: id, Total: 8, Available: 2}, res.Inventory)

	_, err = l.Resize(ctx, id, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
