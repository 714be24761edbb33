package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ctxStrictStore fails any call made with a done context, so a test can
// tell whether compensation ran on a detached context.
type ctxStrictStore struct {
	*testutil.InventoryRepo
}

func (s ctxStrictStore) Reserve(ctx context.Context, eventID uint64, qty int) (model.ReserveResult, error) {
	if err := ctx.Err(); err != nil {
		return model.ReserveResult{}, err
	}
	return s.InventoryRepo.Reserve(ctx, eventID, qty)
}

func (s ctxStrictStore) Release(ctx context.Context, eventID uint64, qty int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.InventoryRepo.Release(ctx, eventID, qty)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.PurchaseEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.PurchaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store     *testutil.Store
	ledger    *Ledger
	svc       *PurchaseService
	publisher *recordingPublisher
}

func newFixture(t *testing.T, opts ...PurchaseServiceOption) *fixture {
	t.Helper()
	store := testutil.NewStore()
	ledger := NewLedger(ctxStrictStore{store.Inventory()}, nil)
	pub := &recordingPublisher{}
	opts = append([]PurchaseServiceOption{WithPublisher(pub), WithCompensationTimeout(time.Second)}, opts...)
	svc := NewPurchaseService(ledger, store.Events(), store.Purchases(), clock.NewFixed(testNow), opts...)
	return &fixture{store: store, ledger: ledger, svc: svc, publisher: pub}
}

func (f *fixture) buy(t *testing.T, eventID uint64, qty int) (model.Purchase, error) {
	t.Helper()
	return f.svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		UserID:     7,
		EventID:    eventID,
		Quantity:   qty,
		TicketType: model.TicketNormal,
	})
}

// lateCancelStore applies every call and then cancels the armed context,
// the way a request deadline can expire while the database is already
// committing. It reports the error of the context it was handed, as a
// driver would.
type lateCancelStore struct {
	*testutil.InventoryRepo

	mu     sync.Mutex
	cancel context.CancelFunc
}

// arm returns a context that is cancelled right after the next store call
// has been applied.
func (s *lateCancelStore) arm(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return ctx
}

func (s *lateCancelStore) fire() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *lateCancelStore) Reserve(ctx context.Context, eventID uint64, qty int) (model.ReserveResult, error) {
	res, err := s.InventoryRepo.Reserve(ctx, eventID, qty)
	if err != nil {
		return res, err
	}
	s.fire()
	if err := ctx.Err(); err != nil {
		return model.ReserveResult{}, err
	}
	return res, nil
}

func (s *lateCancelStore) Release(ctx context.Context, eventID uint64, qty int) (int, error) {
	left, err := s.InventoryRepo.Release(ctx, eventID, qty)
	if err != nil {
		return left, err
	}
	s.fire()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return left, nil
}

// newLateCancelFixture returns a fixture whose ledger store cancels the
// armed context once a call has been applied.
func newLateCancelFixture(t *testing.T) (*fixture, *lateCancelStore) {
	t.Helper()
	store := testutil.NewStore()
	late := &lateCancelStore{InventoryRepo: store.Inventory()}
	ledger := NewLedger(late, nil)
	pub := &recordingPublisher{}
	svc := NewPurchaseService(ledger, store.Events(), store.Purchases(), clock.NewFixed(testNow),
		WithPublisher(pub), WithCompensationTimeout(time.Second))
	return &fixture{store: store, ledger: ledger, svc: svc, publisher: pub}, late
}
