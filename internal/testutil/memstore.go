// Package testutil provides an in-memory stand-in for the MySQL
// repositories and the inventory store, used by service and handler
// tests. Every method holds one mutex, which makes the conditional
// decrement in Reserve atomic the same way a single UPDATE is.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Store holds events and purchases. The exported error fields inject
// faults into the next matching call.
type Store struct {
	mu        sync.Mutex
	events    map[uint64]model.Event
	purchases map[uint64]model.Purchase
	tickets   map[string]bool
	nextEvent uint64
	nextPurch uint64

	// CreateErr is returned by the next Purchases().Create calls while
	// CreateErrTimes is positive.
	CreateErr      error
	CreateErrTimes int
	// UpdateStatusErr is returned by every Purchases().UpdateStatus call.
	UpdateStatusErr error
	// ReleaseErr is returned by every Inventory().Release call.
	ReleaseErr error
	// OnCreate runs inside Purchases().Create before the row is stored.
	OnCreate func(ctx context.Context) error

	Releases int
}

func NewStore() *Store {
	return &Store{
		events:    map[uint64]model.Event{},
		purchases: map[uint64]model.Purchase{},
		tickets:   map[string]bool{},
	}
}

// AddEvent inserts an event with the given capacity and returns its id.
func (s *Store) AddEvent(total int, normal, vip string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	s.events[s.nextEvent] = model.Event{
		ID:               s.nextEvent,
		Title:            fmt.Sprintf("event %d", s.nextEvent),
		StartsAt:         time.Date(2026, 12, 1, 20, 0, 0, 0, time.UTC),
		TotalTickets:     total,
		AvailableTickets: total,
		NormalPrice:      decimal.RequireFromString(normal),
		VIPPrice:         decimal.RequireFromString(vip),
	}
	return s.nextEvent
}

// Available returns the counter of an event, or -1 when it is missing.
func (s *Store) Available(eventID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return -1
	}
	return ev.AvailableTickets
}

// CommittedQuantity sums the quantity of PENDING and VALIDATED purchases
// of an event.
func (s *Store) CommittedQuantity(eventID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.purchases {
		if p.EventID == eventID && p.Status.Committed() {
			n += p.Quantity
		}
	}
	return n
}

// PurchaseCount returns the number of stored purchases.
func (s *Store) PurchaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.purchases)
}

func (s *Store) Events() *EventRepo { return &EventRepo{s} }
func (s *Store) Purchases() *PurchaseRepo { return &PurchaseRepo{s} }
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s} }

type EventRepo struct{ s *Store }

func (r *EventRepo) Create(_ context.Context, e *model.Event) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEvent++
	e.ID = s.nextEvent
	e.AvailableTickets = e.TotalTickets
	s.events[e.ID] = *e
	return nil
}

func (r *EventRepo) GetByID(_ context.Context, id uint64) (model.Event, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return ev, nil
}

func (r *EventRepo) Summary(_ context.Context, eventID uint64) (model.PurchaseTotals, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t := model.PurchaseTotals{PendingAmount: decimal.Zero, ValidatedAmount: decimal.Zero}
	for _, p := range s.purchases {
		if p.EventID != eventID {
			continue
		}
		switch p.Status {
		case model.StatusPending:
			t.PendingQuantity += p.Quantity
			t.PendingAmount = t.PendingAmount.Add(p.TotalAmount)
		case model.StatusValidated:
			t.ValidatedAmount = t.ValidatedAmount.Add(p.TotalAmount)
		}
	}
	return t, nil
}

func (r *EventRepo) Inventories(_ context.Context) ([]model.Inventory, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Inventory, 0, len(s.events))
	for id, ev := range s.events {
		committed := 0
		for _, p := range s.purchases {
			if p.EventID == id && p.Status.Committed() {
				committed += p.Quantity
			}
		}
		out = append(out, model.Inventory{EventID: id, Total: ev.TotalTickets, Available: ev.TotalTickets - committed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (r *EventRepo) MirrorInventory(_ context.Context, inv model.Inventory) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[inv.EventID]
	if !ok {
		return repository.ErrEventNotFound
	}
	ev.TotalTickets = inv.Total
	ev.AvailableTickets = inv.Available
	s.events[inv.EventID] = ev
	return nil
}

func (r *EventRepo) DeleteIfUnused(_ context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return repository.ErrEventNotFound
	}
	for _, p := range s.purchases {
		if p.EventID == id && p.Status.Committed() {
			return repository.ErrConflict
		}
	}
	for pid, p := range s.purchases {
		if p.EventID == id {
			delete(s.purchases, pid)
		}
	}
	delete(s.events, id)
	return nil
}

type PurchaseRepo struct{ s *Store }

func (r *PurchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	s := r.s
	s.mu.Lock()
	hook := s.OnCreate
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErrTimes > 0 {
		s.CreateErrTimes--
		return s.CreateErr
	}
	if s.tickets[p.UniqueTicketID] {
		return repository.ErrDuplicateTicketID
	}
	s.nextPurch++
	p.ID = s.nextPurch
	s.purchases[p.ID] = *p
	s.tickets[p.UniqueTicketID] = true
	return nil
}

func (r *PurchaseRepo) GetByID(_ context.Context, id uint64) (model.Purchase, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return model.Purchase{}, repository.ErrPurchaseNotFound
	}
	return p, nil
}

func (r *PurchaseRepo) UpdateStatus(_ context.Context, id uint64, status model.PurchaseStatus, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateStatusErr != nil {
		return s.UpdateStatusErr
	}
	p, ok := s.purchases[id]
	if !ok {
		return repository.ErrPurchaseNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	s.purchases[id] = p
	return nil
}

func (r *PurchaseRepo) ListByUser(_ context.Context, userID uint64) ([]model.Purchase, error) {
	return r.s.list(func(p model.Purchase) bool { return p.UserID == userID }), nil
}

func (r *PurchaseRepo) List(_ context.Context) ([]model.Purchase, error) {
	return r.s.list(func(model.Purchase) bool { return true }), nil
}

func (r *PurchaseRepo) DeleteCancelledByUser(_ context.Context, userID uint64) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.purchases {
		if p.UserID == userID && p.Status == model.StatusCancelled {
			delete(s.purchases, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) list(keep func(model.Purchase) bool) []model.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type InventoryRepo struct{ s *Store }

func (r *InventoryRepo) Reserve(_ context.Context, eventID uint64, qty int) (model.ReserveResult, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return model.ReserveResult{Reason: model.RefusalNoEvent}, nil
	}
	if ev.AvailableTickets < qty {
		return model.ReserveResult{Available: ev.AvailableTickets, Reason: model.RefusalSoldOut}, nil
	}
	ev.AvailableTickets -= qty
	s.events[eventID] = ev
	return model.ReserveResult{OK: true, Available: ev.AvailableTickets}, nil
}

func (r *InventoryRepo) Release(_ context.Context, eventID uint64, qty int) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReleaseErr != nil {
		return 0, s.ReleaseErr
	}
	ev, ok := s.events[eventID]
	if !ok {
		return 0, model.ErrNoInventory
	}
	if ev.AvailableTickets+qty > ev.TotalTickets {
		return 0, fmt.Errorf("release of %d exceeds capacity of event %d", qty, eventID)
	}
	ev.AvailableTickets += qty
	s.events[eventID] = ev
	s.Releases++
	return ev.AvailableTickets, nil
}

func (r *InventoryRepo) Resize(_ context.Context, eventID uint64, total int) (model.ResizeResult, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return model.ResizeResult{Missing: true}, nil
	}
	committed := ev.TotalTickets - ev.AvailableTickets
	if total < committed {
		inv := model.Inventory{EventID: eventID, Total: ev.TotalTickets, Available: ev.AvailableTickets}
		return model.ResizeResult{Inventory: inv, Committed: committed}, nil
	}
	ev.TotalTickets = total
	ev.AvailableTickets = total - committed
	s.events[eventID] = ev
	inv := model.Inventory{EventID: eventID, Total: total, Available: ev.AvailableTickets}
	return model.ResizeResult{OK: true, Inventory: inv, Committed: committed}, nil
}

func (r *InventoryRepo) Snapshot(_ context.Context, eventID uint64) (model.Inventory, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return model.Inventory{}, model.ErrNoInventory
	}
	return model.Inventory{EventID: eventID, Total: ev.TotalTickets, Available: ev.AvailableTickets}, nil
}
