package model

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TicketType selects which of the event's prices applies.
type TicketType string

const (
	TicketNormal TicketType = "NORMAL"
	TicketVIP    TicketType = "VIP"
)

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool { return t == TicketNormal || t == TicketVIP }

// ParseTicketType normalizes s and returns the matching ticket type.
func ParseTicketType(s string) (TicketType, bool) {
	t := TicketType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// PurchaseStatus is a state of the purchase lifecycle.
type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "PENDING"
	StatusValidated PurchaseStatus = "VALIDATED"
	StatusCancelled PurchaseStatus = "CANCELLED"
)

// Statuses lists every lifecycle state.
var Statuses = []PurchaseStatus{StatusPending, StatusValidated, StatusCancelled}

// Valid reports whether s is one of Statuses.
func (s PurchaseStatus) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Committed reports whether a purchase in status s holds inventory.
func (s PurchaseStatus) Committed() bool { return s == StatusPending || s == StatusValidated }

// ParsePurchaseStatus normalizes s and returns the matching status.
func ParsePurchaseStatus(s string) (PurchaseStatus, bool) {
	st := PurchaseStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Purchase records a user's claim on a quantity of tickets for one
// event. It corresponds to a row in the `purchases` table.
//
// Fields:
//  ID             – primary key identifier.
//  UniqueTicketID – ticket code assigned at creation, never reassigned.
//  UserID         – buyer.
//  EventID        – event the tickets belong to.
//  Quantity       – number of tickets, always positive.
//  TicketType     – NORMAL or VIP.
//  TotalAmount    – price snapshot taken at creation.
//  Status         – PENDING, VALIDATED or CANCELLED.
//  PaymentProof   – reference to an uploaded proof, if any.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Purchase struct {
	ID             uint64          `json:"id"`               // purchases.id
	UniqueTicketID string          `json:"unique_ticket_id"` // purchases.unique_ticket_id
	UserID         uint64          `json:"user_id"`          // purchases.user_id
	EventID        uint64          `json:"event_id"`         // purchases.event_id
	Quantity       int             `json:"quantity"`         // purchases.quantity
	TicketType     TicketType      `json:"ticket_type"`      // purchases.ticket_type
	TotalAmount    decimal.Decimal `json:"total_amount"`     // purchases.total_amount
	Status         PurchaseStatus  `json:"status"`           // purchases.status
	PaymentProof   *string         `json:"payment_proof"`    // purchases.payment_proof (nullable)
	CreatedAt      time.Time       `json:"created_at"`       // purchases.created_at
	UpdatedAt      time.Time       `json:"updated_at"`       // purchases.updated_at
}
