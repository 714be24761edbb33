package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/monitoring"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// PurchaseRepository stores purchases.
type PurchaseRepository interface {
	Create(ctx context.Context, p *model.Purchase) error
	GetByID(ctx context.Context, id uint64) (model.Purchase, error)
	UpdateStatus(ctx context.Context, id uint64, status model.PurchaseStatus, at time.Time) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Purchase, error)
	List(ctx context.Context) ([]model.Purchase, error)
	DeleteCancelledByUser(ctx context.Context, userID uint64) (int64, error)
}

// EventReader loads the event a purchase is made for.
type EventReader interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

// EventPublisher receives purchase events after a successful change.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.PurchaseEvent) error
}

const (
	defaultCompensationTimeout = 5 * time.Second
	publishTimeout             = 3 * time.Second
	ticketIDAttempts           = 3
)

// PurchaseService drives the purchase lifecycle against the Ledger. Every
// Reserve it issues is either matched by a stored committed purchase or
// undone by a compensating Release.
type PurchaseService struct {
	ledger    *Ledger
	events    EventReader
	purchases PurchaseRepository
	clock     clock.Clock

	publisher           EventPublisher
	newTicketID         TicketIDFunc
	compensationTimeout time.Duration
	log                 *slog.Logger
}

// NewPurchaseService wires a PurchaseService. Options override the
// defaults: no publisher, random ticket codes and a 5s compensation timeout.
func NewPurchaseService(ledger *Ledger, events EventReader, purchases PurchaseRepository, clk clock.Clock, opts ...PurchaseServiceOption) *PurchaseService {
	svc := &PurchaseService{
		ledger:              ledger,
		events:              events,
		purchases:           purchases,
		clock:               clk,
		newTicketID:         NewTicketID,
		compensationTimeout: defaultCompensationTimeout,
		log:                 slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.log = svc.log.With("component", "purchases")
	return svc
}

// PurchaseServiceOption configures a PurchaseService.
type PurchaseServiceOption func(*PurchaseService)

// WithPublisher sends purchase events to p.
func WithPublisher(p EventPublisher) PurchaseServiceOption {
	return func(s *PurchaseService) { s.publisher = p }
}

// WithTicketIDs overrides the ticket code generator.
func WithTicketIDs(f TicketIDFunc) PurchaseServiceOption {
	return func(s *PurchaseService) {
		if f != nil {
			s.newTicketID = f
		}
	}
}

// WithCompensationTimeout bounds how long a compensating ledger call may
// run after the caller has gone away.
func WithCompensationTimeout(d time.Duration) PurchaseServiceOption {
	return func(s *PurchaseService) {
		if d > 0 {
			s.compensationTimeout = d
		}
	}
}

// WithLogger sets the logger. A nil logger keeps slog.Default.
func WithLogger(l *slog.Logger) PurchaseServiceOption {
	return func(s *PurchaseService) {
		if l != nil {
			s.log = l
		}
	}
}

// CreatePurchaseInput is what a customer asks for when buying tickets.
type CreatePurchaseInput struct {
	UserID       uint64
	EventID      uint64
	Quantity     int
	TicketType   model.TicketType
	PaymentProof *string
}

func (in CreatePurchaseInput) validate() error {
	switch {
	case in.UserID == 0:
		return fmt.Errorf("%w: user is required", ErrInvalidInput)
	case in.EventID == 0:
		return fmt.Errorf("%w: event_id is required", ErrInvalidInput)
	case in.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	case !in.TicketType.Valid():
		return fmt.Errorf("%w: ticket_type must be NORMAL or VIP", ErrInvalidInput)
	}
	return nil
}

// CreatePurchase reserves the requested tickets and stores a PENDING
// purchase priced at the event's current unit price.
func (s *PurchaseService) CreatePurchase(ctx context.Context, in CreatePurchaseInput) (model.Purchase, error) {
	if err := in.validate(); err != nil {
		return model.Purchase{}, err
	}
	ev, err := s.events.GetByID(ctx, in.EventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return model.Purchase{}, fmt.Errorf("%w: %d", ErrEventNotFound, in.EventID)
	}
	if err != nil {
		return model.Purchase{}, fmt.Errorf("load event %d: %w", in.EventID, err)
	}
	unit, _ := ev.PriceFor(in.TicketType)

	now := s.clock.Now()
	p := model.Purchase{
		UserID:       in.UserID,
		EventID:      ev.ID,
		Quantity:     in.Quantity,
		TicketType:   in.TicketType,
		TotalAmount:  unit.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:       model.StatusPending,
		PaymentProof: in.PaymentProof,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := s.withReservation(ctx, ev.ID, in.Quantity, "create", func(ctx context.Context) error {
		return s.insertWithTicketID(ctx, &p)
	})
	if err != nil {
		return model.Purchase{}, err
	}

	s.log.Info("purchase created",
		"purchase_id", p.ID, "ticket_id", p.UniqueTicketID, "user_id", p.UserID,
		"event_id", p.EventID, "quantity", p.Quantity, "available", res.Available)
	available := res.Available
	s.publish(ctx, p, "", &available)
	return p, nil
}

// TransitionResult describes the outcome of TransitionStatus. Changed is
// false when the purchase already had the requested status.
type TransitionResult struct {
	Purchase model.Purchase
	Previous model.PurchaseStatus
	Changed  bool
}

// TransitionStatus moves a purchase to target. The ledger call required by
// the transition completes before the status is written, and a failed
// status write undoes that ledger call.
func (s *PurchaseService) TransitionStatus(ctx context.Context, purchaseID uint64, target model.PurchaseStatus) (TransitionResult, error) {
	if !target.Valid() {
		return TransitionResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}
	p, err := s.GetPurchase(ctx, purchaseID)
	if err != nil {
		return TransitionResult{}, err
	}
	from := p.Status
	if from == target {
		monitoring.TrackTransition(string(from), string(target), "noop")
		return TransitionResult{Purchase: p, Previous: from}, nil
	}
	action, ok := planTransition(from, target)
	if !ok {
		return TransitionResult{}, fmt.Errorf("%w: purchase %d has unknown status %q", ErrInvalidInput, p.ID, from)
	}

	now := s.clock.Now()
	var available *int
	switch action {
	case actionNone:
		err = s.writeStatus(ctx, p.ID, target, now)
	case actionRelease:
		var left int
		left, err = s.releaseThenWrite(ctx, p, target, now)
		available = &left
	case actionReserve:
		var res model.ReserveResult
		res, err = s.withReservation(ctx, p.EventID, p.Quantity, "reactivate", func(ctx context.Context) error {
			return s.writeStatus(ctx, p.ID, target, now)
		})
		if errors.Is(err, ErrOutOfStock) {
			err = fmt.Errorf("%w: purchase %d needs %d, available %d",
				ErrOutOfStockOnReactivate, p.ID, p.Quantity, res.Available)
		}
		left := res.Available
		available = &left
	}
	if err != nil {
		monitoring.TrackTransition(string(from), string(target), "failed")
		return TransitionResult{}, err
	}

	p.Status = target
	p.UpdatedAt = now
	monitoring.TrackTransition(string(from), string(target), "ok")
	s.log.Info("purchase status changed",
		"purchase_id", p.ID, "from", from, "to", target, "ledger", action.String(), "event_id", p.EventID)
	s.publish(ctx, p, from, available)
	return TransitionResult{Purchase: p, Previous: from, Changed: true}, nil
}

// GetPurchase returns one purchase.
func (s *PurchaseService) GetPurchase(ctx context.Context, id uint64) (model.Purchase, error) {
	p, err := s.purchases.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPurchaseNotFound) {
		return model.Purchase{}, fmt.Errorf("%w: %d", ErrPurchaseNotFound, id)
	}
	if err != nil {
		return model.Purchase{}, fmt.Errorf("load purchase %d: %w", id, err)
	}
	return p, nil
}

func (s *PurchaseService) ListUserPurchases(ctx context.Context, userID uint64) ([]model.Purchase, error) {
	ps, err := s.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases of user %d: %w", userID, err)
	}
	return ps, nil
}

func (s *PurchaseService) ListPurchases(ctx context.Context) ([]model.Purchase, error) {
	ps, err := s.purchases.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return ps, nil
}

// PurgeCancelled deletes a user's CANCELLED purchases. They hold no
// inventory, so the ledger is not involved.
func (s *PurchaseService) PurgeCancelled(ctx context.Context, userID uint64) (int64, error) {
	if userID == 0 {
		return 0, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	n, err := s.purchases.DeleteCancelledByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("purge cancelled purchases of user %d: %w", userID, err)
	}
	s.log.Info("cancelled purchases purged", "user_id", userID, "deleted", n)
	return n, nil
}

// withReservation reserves qty tickets, runs use and releases the
// reservation again unless use returns nil. The release also runs when use
// panics or ctx is done, on a context detached from ctx's cancellation.
//
// The Reserve itself runs detached too. A store call abandoned half way may
// still have committed its decrement, and nothing would release it.
func (s *PurchaseService) withReservation(ctx context.Context, eventID uint64, qty int, cause string, use func(ctx context.Context) error) (res model.ReserveResult, err error) {
	if err = ctx.Err(); err != nil {
		return res, err
	}
	rctx, cancel := s.compensationContext(ctx)
	res, err = s.ledger.Reserve(rctx, eventID, qty)
	cancel()
	if err != nil {
		return res, err
	}
	if !res.OK {
		if res.Reason == model.RefusalNoEvent {
			return res, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
		}
		return res, fmt.Errorf("%w: requested %d, available %d", ErrOutOfStock, qty, res.Available)
	}

	kept := false
	defer func() {
		if kept {
			return
		}
		if relErr := s.compensateRelease(ctx, eventID, qty, cause); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	if err = use(ctx); err != nil {
		return res, err
	}
	kept = true
	return res, nil
}

// releaseThenWrite releases a cancelled purchase's tickets and then writes
// its status. If the write fails the tickets are reserved again so the
// purchase, still committed, keeps holding them. Like the reserve in
// withReservation, the release is not abandoned when ctx is done.
func (s *PurchaseService) releaseThenWrite(ctx context.Context, p model.Purchase, target model.PurchaseStatus, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rctx, cancel := s.compensationContext(ctx)
	left, err := s.ledger.Release(rctx, p.EventID, p.Quantity)
	cancel()
	if err != nil {
		return 0, err
	}
	if err := s.writeStatus(ctx, p.ID, target, now); err != nil {
		return 0, errors.Join(err, s.compensateReserve(ctx, p))
	}
	return left, nil
}

func (s *PurchaseService) insertWithTicketID(ctx context.Context, p *model.Purchase) error {
	var err error
	for attempt := 1; attempt <= ticketIDAttempts; attempt++ {
		id, genErr := s.newTicketID(p.UserID, p.EventID, s.clock.Now())
		if genErr != nil {
			return genErr
		}
		p.UniqueTicketID = id
		err = s.purchases.Create(ctx, p)
		if !errors.Is(err, repository.ErrDuplicateTicketID) {
			break
		}
		s.log.Warn("ticket id collision", "ticket_id", id, "attempt", attempt)
	}
	if err != nil {
		return fmt.Errorf("persist purchase: %w", err)
	}
	return nil
}

func (s *PurchaseService) writeStatus(ctx context.Context, id uint64, status model.PurchaseStatus, at time.Time) error {
	err := s.purchases.UpdateStatus(ctx, id, status, at)
	if errors.Is(err, repository.ErrPurchaseNotFound) {
		return fmt.Errorf("%w: %d", ErrPurchaseNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("update status of purchase %d: %w", id, err)
	}
	return nil
}

// compensationContext keeps ctx's values but not its cancellation, bounded
// by the compensation timeout.
func (s *PurchaseService) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
}

func (s *PurchaseService) compensateRelease(ctx context.Context, eventID uint64, qty int, cause string) error {
	cctx, cancel := s.compensationContext(ctx)
	defer cancel()
	left, err := s.ledger.Release(cctx, eventID, qty)
	if err != nil {
		monitoring.TrackCompensation(cause, "failed")
		s.log.Error("compensating release failed",
			"event_id", eventID, "quantity", qty, "cause", cause, "error", err)
		return fmt.Errorf("compensating release: %w", err)
	}
	monitoring.TrackCompensation(cause, "ok")
	s.log.Warn("reservation released after failed step",
		"event_id", eventID, "quantity", qty, "cause", cause, "available", left)
	return nil
}

func (s *PurchaseService) compensateReserve(ctx context.Context, p model.Purchase) error {
	cctx, cancel := s.compensationContext(ctx)
	defer cancel()
	res, err := s.ledger.Reserve(cctx, p.EventID, p.Quantity)
	switch {
	case err != nil:
		err = fmt.Errorf("compensating reserve: %w", err)
	case !res.OK:
		err = fmt.Errorf("compensating reserve refused: %s", res.Reason)
	}
	if err != nil {
		monitoring.TrackCompensation("cancel", "failed")
		s.log.Error("released tickets of a purchase that is still committed",
			"purchase_id", p.ID, "event_id", p.EventID, "quantity", p.Quantity, "error", err)
		return err
	}
	monitoring.TrackCompensation("cancel", "ok")
	return nil
}

func (s *PurchaseService) publish(ctx context.Context, p model.Purchase, previous model.PurchaseStatus, available *int) {
	if s.publisher == nil {
		return
	}
	ev := queue.NewPurchaseEvent(p, previous, available, s.clock.Now())
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, ev); err != nil {
		monitoring.TrackPublish(ev.Type, "error")
		s.log.Warn("publish purchase event failed", "purchase_id", p.ID, "type", ev.Type, "error", err)
		return
	}
	monitoring.TrackPublish(ev.Type, "ok")
}
