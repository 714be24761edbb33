// Package queue carries purchase lifecycle events over RabbitMQ: the
// payload definition, a publisher used by the purchase service and a
// background consumer that keeps an audit log.
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Event types carried in PurchaseEvent.Type.
const (
	TypePurchaseCreated       = "purchase.created"
	TypePurchaseStatusChanged = "purchase.status_changed"
)

// PurchaseEvent is published after a purchase is created or changes
// status. It carries enough information for downstream consumers to log,
// notify or trigger analytics without querying the primary database.
type PurchaseEvent struct {
	MessageID      string          `json:"message_id"`
	Type           string          `json:"type"`
	PurchaseID     uint64          `json:"purchase_id"`
	UniqueTicketID string          `json:"unique_ticket_id"`
	UserID         uint64          `json:"user_id"`
	EventID        uint64          `json:"event_id"`
	Quantity       int             `json:"quantity"`
	TicketType     string          `json:"ticket_type"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	Available      *int            `json:"available,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NewPurchaseEvent builds the event for p. previous is empty for a newly
// created purchase. available is the ledger counter after the change when
// the change touched inventory.
func NewPurchaseEvent(p model.Purchase, previous model.PurchaseStatus, available *int, at time.Time) PurchaseEvent {
	typ := TypePurchaseStatusChanged
	if previous == "" {
		typ = TypePurchaseCreated
	}
	return PurchaseEvent{
		MessageID:      uuid.NewString(),
		Type:           typ,
		PurchaseID:     p.ID,
		UniqueTicketID: p.UniqueTicketID,
		UserID:         p.UserID,
		EventID:        p.EventID,
		Quantity:       p.Quantity,
		TicketType:     string(p.TicketType),
		TotalAmount:    p.TotalAmount,
		Status:         string(p.Status),
		PreviousStatus: string(previous),
		Available:      available,
		OccurredAt:     at.UTC(),
	}
}
