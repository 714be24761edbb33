package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
)

// InventoryStore is the storage primitive behind the Ledger. Reserve must
// be a single atomic "decrement if at least qty" write evaluated by the
// store itself, never a read followed by a write in this process.
type InventoryStore interface {
	Reserve(ctx context.Context, eventID uint64, qty int) (model.ReserveResult, error)
	Release(ctx context.Context, eventID uint64, qty int) (int, error)
	Resize(ctx context.Context, eventID uint64, total int) (model.ResizeResult, error)
	Snapshot(ctx context.Context, eventID uint64) (model.Inventory, error)
}

// Ledger is the only component that changes an event's available
// tickets. Refusals are values; errors are storage faults or invalid
// arguments.
type Ledger struct {
	store InventoryStore
	log   *slog.Logger
}

// NewLedger wraps store. A nil logger means slog.Default().
func NewLedger(store InventoryStore, logger *slog.Logger) *Ledger {
	if store == nil {
		panic("service: nil inventory store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, log: logger.With("component", "ledger")}
}

// Reserve takes qty tickets of an event if at least qty are available.
func (l *Ledger) Reserve(ctx context.Context, eventID uint64, qty int) (model.ReserveResult, error) {
	if qty <= 0 {
		return model.ReserveResult{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	start := time.Now()
	res, err := l.store.Reserve(ctx, eventID, qty)
	if err != nil {
		monitoring.TrackLedger("reserve", "error", time.Since(start))
		return model.ReserveResult{}, fmt.Errorf("reserve %d tickets for event %d: %w", qty, eventID, err)
	}
	if !res.OK {
		monitoring.TrackLedger("reserve", "refused", time.Since(start))
		l.log.Debug("reservation refused",
			"event_id", eventID, "quantity", qty, "reason", res.Reason, "available", res.Available)
		return res, nil
	}
	monitoring.TrackLedger("reserve", "granted", time.Since(start))
	monitoring.SetAvailable(eventID, res.Available)
	return res, nil
}

// Release gives back qty tickets taken by an earlier successful Reserve.
func (l *Ledger) Release(ctx context.Context, eventID uint64, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	start := time.Now()
	left, err := l.store.Release(ctx, eventID, qty)
	if err != nil {
		monitoring.TrackLedger("release", "error", time.Since(start))
		if errors.Is(err, model.ErrNoInventory) {
			return 0, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
		}
		return 0, fmt.Errorf("release %d tickets for event %d: %w", qty, eventID, err)
	}
	monitoring.TrackLedger("release", "ok", time.Since(start))
	monitoring.SetAvailable(eventID, left)
	return left, nil
}

// Resize changes the capacity of an event, keeping the committed quantity.
// A refused resize is reported through the result.
func (l *Ledger) Resize(ctx context.Context, eventID uint64, total int) (model.ResizeResult, error) {
	if total <= 0 {
		return model.ResizeResult{}, fmt.Errorf("%w: total tickets must be positive", ErrInvalidInput)
	}
	start := time.Now()
	res, err := l.store.Resize(ctx, eventID, total)
	if err != nil {
		monitoring.TrackLedger("resize", "error", time.Since(start))
		return model.ResizeResult{}, fmt.Errorf("resize event %d to %d: %w", eventID, total, err)
	}
	if !res.OK {
		monitoring.TrackLedger("resize", "refused", time.Since(start))
		return res, nil
	}
	monitoring.TrackLedger("resize", "ok", time.Since(start))
	monitoring.SetAvailable(eventID, res.Inventory.Available)
	l.log.Info("capacity changed",
		"event_id", eventID, "total", res.Inventory.Total, "available", res.Inventory.Available)
	return res, nil
}

// Snapshot returns the current counters of an event.
func (l *Ledger) Snapshot(ctx context.Context, eventID uint64) (model.Inventory, error) {
	inv, err := l.store.Snapshot(ctx, eventID)
	if errors.Is(err, model.ErrNoInventory) {
		return model.Inventory{}, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	if err != nil {
		return model.Inventory{}, fmt.Errorf("snapshot event %d: %w", eventID, err)
	}
	return inv, nil
}
