package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventRepository stores events and derives their inventory from purchases.
type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (model.Event, error)
	Summary(ctx context.Context, eventID uint64) (model.PurchaseTotals, error)
	DeleteIfUnused(ctx context.Context, id uint64) error
	Inventories(ctx context.Context) ([]model.Inventory, error)
	MirrorInventory(ctx context.Context, inv model.Inventory) error
}

// InventorySeeder is implemented by ledger stores that keep their
// counters outside the events table and must be told about new and
// deleted events. Seed overwrites; SeedMissing leaves existing counters
// alone and reports whether it wrote.
type InventorySeeder interface {
	Seed(ctx context.Context, eventID uint64, total, available int) error
	SeedMissing(ctx context.Context, eventID uint64, total, available int) (bool, error)
	Drop(ctx context.Context, eventID uint64) error
}

// EventService handles the administrative side of events: creation,
// capacity changes, deletion and the sales summary.
type EventService struct {
	events EventRepository
	ledger *Ledger
	seeder InventorySeeder
	log    *slog.Logger
}

// NewEventService returns an EventService. seeder may be nil when the
// ledger store reads the events table directly.
func NewEventService(events EventRepository, ledger *Ledger, seeder InventorySeeder, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{events: events, ledger: ledger, seeder: seeder, log: logger.With("component", "events")}
}

type CreateEventInput struct {
	Title        string
	Description  string
	StartsAt     time.Time
	TotalTickets int
	NormalPrice  decimal.Decimal
	VIPPrice     decimal.Decimal
}

func (in CreateEventInput) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case in.StartsAt.IsZero():
		return fmt.Errorf("%w: starts_at is required", ErrInvalidInput)
	case in.TotalTickets <= 0:
		return fmt.Errorf("%w: total_tickets must be positive", ErrInvalidInput)
	case in.NormalPrice.IsNegative() || in.VIPPrice.IsNegative():
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidInput)
	}
	return nil
}

// CreateEvent stores a new event with all of its tickets available.
func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (model.Event, error) {
	if err := in.validate(); err != nil {
		return model.Event{}, err
	}
	ev := model.Event{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		StartsAt:     in.StartsAt.UTC(),
		TotalTickets: in.TotalTickets,
		NormalPrice:  in.NormalPrice.Round(2),
		VIPPrice:     in.VIPPrice.Round(2),
	}
	if err := s.events.Create(ctx, &ev); err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	if s.seeder != nil {
		if err := s.seeder.Seed(ctx, ev.ID, ev.TotalTickets, ev.TotalTickets); err != nil {
			if delErr := s.events.DeleteIfUnused(context.WithoutCancel(ctx), ev.ID); delErr != nil {
				s.log.Error("remove unseeded event failed", "event_id", ev.ID, "error", delErr)
			}
			return model.Event{}, fmt.Errorf("seed inventory of event %d: %w", ev.ID, err)
		}
	}
	monitoring.SetAvailable(ev.ID, ev.TotalTickets)
	s.log.Info("event created", "event_id", ev.ID, "total_tickets", ev.TotalTickets)
	return ev, nil
}

// GetSummary reports inventory and revenue figures of an event. Inventory
// figures come from the ledger.
func (s *EventService) GetSummary(ctx context.Context, eventID uint64) (model.EventSummary, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return model.EventSummary{}, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	if err != nil {
		return model.EventSummary{}, fmt.Errorf("load event %d: %w", eventID, err)
	}
	inv, err := s.ledger.Snapshot(ctx, eventID)
	if err != nil {
		return model.EventSummary{}, err
	}
	totals, err := s.events.Summary(ctx, eventID)
	if err != nil {
		return model.EventSummary{}, fmt.Errorf("summarize purchases of event %d: %w", eventID, err)
	}
	ev.TotalTickets = inv.Total
	ev.AvailableTickets = inv.Available
	return model.EventSummary{
		Event:            ev,
		TotalTickets:     inv.Total,
		AvailableTickets: inv.Available,
		SoldTickets:      inv.Committed(),
		PendingTickets:   totals.PendingQuantity,
		ValidatedRevenue: totals.ValidatedAmount,
		PendingRevenue:   totals.PendingAmount,
	}, nil
}

// ResizeCapacity sets the total tickets of an event. It is refused when
// the new total is below the quantity held by committed purchases. With
// an external ledger store the new counters are copied to the events
// table; a failed copy is reported and the resize can be repeated.
func (s *EventService) ResizeCapacity(ctx context.Context, eventID uint64, total int) (model.Inventory, error) {
	res, err := s.ledger.Resize(ctx, eventID, total)
	if err != nil {
		return model.Inventory{}, err
	}
	if res.Missing {
		return model.Inventory{}, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	if !res.OK {
		return res.Inventory, fmt.Errorf("%w: %d tickets are held by pending or validated purchases",
			ErrCapacityBelowCommitted, res.Committed)
	}
	if s.seeder != nil {
		if err := s.events.MirrorInventory(ctx, res.Inventory); err != nil {
			return model.Inventory{}, fmt.Errorf("record capacity of event %d: %w", eventID, err)
		}
	}
	return res.Inventory, nil
}

// DeleteEvent removes an event that no committed purchase refers to.
func (s *EventService) DeleteEvent(ctx context.Context, eventID uint64) error {
	err := s.events.DeleteIfUnused(ctx, eventID)
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrEventInUse, err)
	case err != nil:
		return fmt.Errorf("delete event %d: %w", eventID, err)
	}
	if s.seeder != nil {
		if err := s.seeder.Drop(ctx, eventID); err != nil {
			s.log.Warn("drop inventory counters failed", "event_id", eventID, "error", err)
		}
	}
	monitoring.ForgetEvent(eventID)
	s.log.Info("event deleted", "event_id", eventID)
	return nil
}

// SyncInventory seeds the ledger store with the counter of every event
// that has none, derived from stored purchases, and returns how many it
// wrote. Existing counters are live state shared by every instance and are
// left alone. With force they are overwritten as well; that is only safe
// while no instance is serving purchases.
func (s *EventService) SyncInventory(ctx context.Context, force bool) (int, error) {
	if s.seeder == nil {
		return 0, nil
	}
	invs, err := s.events.Inventories(ctx)
	if err != nil {
		return 0, fmt.Errorf("load inventories: %w", err)
	}
	if force {
		s.log.Warn("overwriting inventory counters", "events", len(invs))
	}
	written := 0
	for _, inv := range invs {
		if force {
			err = s.seeder.Seed(ctx, inv.EventID, inv.Total, inv.Available)
		} else {
			var seeded bool
			seeded, err = s.seeder.SeedMissing(ctx, inv.EventID, inv.Total, inv.Available)
			if err == nil && !seeded {
				continue
			}
		}
		if err != nil {
			return written, fmt.Errorf("seed inventory of event %d: %w", inv.EventID, err)
		}
		written++
		monitoring.SetAvailable(inv.EventID, inv.Available)
	}
	s.log.Info("inventory synced", "events", len(invs), "seeded", written, "forced", force)
	return written, nil
}
