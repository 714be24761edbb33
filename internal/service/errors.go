package service

import "errors"

// Errors returned by the services. Handlers map them to HTTP responses
// with errors.Is; anything else is a storage or transport fault.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEventNotFound          = errors.New("event not found")
	ErrOutOfStock             = errors.New("not enough tickets available")
	ErrPurchaseNotFound       = errors.New("purchase not found")
	ErrOutOfStockOnReactivate = errors.New("not enough tickets available to reactivate purchase")
	ErrCapacityBelowCommitted = errors.New("capacity below committed tickets")
	ErrEventInUse             = errors.New("event has pending or validated purchases")
)
