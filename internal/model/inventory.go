package model

import "errors"

// ErrNoInventory is returned by inventory stores when no counter exists
// for the requested event.
var ErrNoInventory = errors.New("no inventory for event")

// Inventory is a point-in-time view of an event's ticket counter.
type Inventory struct {
	EventID   uint64 `json:"event_id"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
}

// Committed is the quantity held by PENDING or VALIDATED purchases.
func (i Inventory) Committed() int { return i.Total - i.Available }

// RefusalReason explains why a reservation was not granted.
type RefusalReason string

const (
	RefusalNone    RefusalReason = ""
	RefusalSoldOut RefusalReason = "SOLD_OUT"
	RefusalNoEvent RefusalReason = "EVENT_NOT_FOUND"
)

// ReserveResult is the outcome of a conditional decrement. A refusal is
// reported here and never as an error.
type ReserveResult struct {
	OK        bool
	Available int // counter after the write, or the current value when refused
	Reason    RefusalReason
}

// ResizeResult is the outcome of a capacity change.
type ResizeResult struct {
	OK        bool
	Inventory Inventory
	Committed int
	Missing   bool // no counter exists for the event
}
