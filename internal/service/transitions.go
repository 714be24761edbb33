package service

import "github.com/iliyamo/event-ticketing/internal/model"

// ledgerAction is the inventory side effect of a status transition.
type ledgerAction int

const (
	actionNone ledgerAction = iota
	actionRelease
	actionReserve
)

func (a ledgerAction) String() string {
	switch a {
	case actionRelease:
		return "release"
	case actionReserve:
		return "reserve"
	}
	return "none"
}

type statusPair struct {
	from, to model.PurchaseStatus
}

// transitionTable covers every (from, to) pair of known statuses. Moving
// between the two committed states never touches inventory.
var transitionTable = map[statusPair]ledgerAction{
	{model.StatusPending, model.StatusPending}:     actionNone,
	{model.StatusPending, model.StatusValidated}:   actionNone,
	{model.StatusPending, model.StatusCancelled}:   actionRelease,
	{model.StatusValidated, model.StatusPending}:   actionNone,
	{model.StatusValidated, model.StatusValidated}: actionNone,
	{model.StatusValidated, model.StatusCancelled}: actionRelease,
	{model.StatusCancelled, model.StatusPending}:   actionReserve,
	{model.StatusCancelled, model.StatusValidated}: actionReserve,
	{model.StatusCancelled, model.StatusCancelled}: actionNone,
}

// planTransition looks up the ledger action for from -> to. ok is false
// when either status is unknown.
func planTransition(from, to model.PurchaseStatus) (ledgerAction, bool) {
	a, ok := transitionTable[statusPair{from, to}]
	return a, ok
}
