package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a ticketed occasion with a finite number of tickets. It
// corresponds to a row in the `events` table. AvailableTickets is
// owned by the inventory ledger: nothing outside the ledger writes it.
//
// Fields:
//  ID               – primary key identifier.
//  Title            – display title.
//  Description      – optional free text.
//  StartsAt         – when the event takes place.
//  TotalTickets     – capacity of the event.
//  AvailableTickets – tickets not held by a PENDING or VALIDATED purchase.
//  NormalPrice      – unit price of a NORMAL ticket.
//  VIPPrice         – unit price of a VIP ticket.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Event struct {
	ID               uint64          `json:"id"`                // events.id
	Title            string          `json:"title"`             // events.title
	Description      string          `json:"description"`       // events.description
	StartsAt         time.Time       `json:"starts_at"`         // events.starts_at
	TotalTickets     int             `json:"total_tickets"`     // events.total_tickets
	AvailableTickets int             `json:"available_tickets"` // events.available_tickets
	NormalPrice      decimal.Decimal `json:"normal_price"`      // events.normal_price
	VIPPrice         decimal.Decimal `json:"vip_price"`         // events.vip_price
	CreatedAt        time.Time       `json:"created_at"`        // events.created_at
	UpdatedAt        time.Time       `json:"updated_at"`        // events.updated_at
}

// PriceFor returns the unit price for the given ticket type. The
// boolean is false for unknown ticket types.
func (e Event) PriceFor(t TicketType) (decimal.Decimal, bool) {
	switch t {
	case TicketNormal:
		return e.NormalPrice, true
	case TicketVIP:
		return e.VIPPrice, true
	}
	return decimal.Zero, false
}

// EventSummary aggregates the inventory and revenue figures of one event.
type EventSummary struct {
	Event            Event           `json:"event"`
	TotalTickets     int             `json:"total_tickets"`
	AvailableTickets int             `json:"available_tickets"`
	SoldTickets      int             `json:"sold_tickets"`
	PendingTickets   int             `json:"pending_tickets"`
	ValidatedRevenue decimal.Decimal `json:"validated_revenue"`
	PendingRevenue   decimal.Decimal `json:"pending_revenue"`
}

// PurchaseTotals is the per-status aggregation of an event's purchases.
type PurchaseTotals struct {
	PendingQuantity int
	PendingAmount   decimal.Decimal
	ValidatedAmount decimal.Decimal
}
