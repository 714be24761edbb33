package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func TestTransitionTableIsExhaustive(t *testing.T) {
	t.Parallel()

	assert.Len(t, transitionTable, len(model.Statuses)*len(model.Statuses))
	for _, from := range model.Statuses {
		for _, to := range model.Statuses {
			action, ok := planTransition(from, to)
			if !assert.True(t, ok, "%s -> %s missing", from, to) {
				continue
			}
			switch {
			case from.Committed() && to == model.StatusCancelled:
				assert.Equal(t, actionRelease, action, "%s -> %s", from, to)
			case from == model.StatusCancelled && to.Committed():
				assert.Equal(t, actionReserve, action, "%s -> %s", from, to)
			default:
				assert.Equal(t, actionNone, action, "%s -> %s", from, to)
			}
		}
	}
}

func TestPlanTransitionUnknownStatus(t *testing.T) {
	t.Parallel()

	_, ok := planTransition(model.StatusPending, model.PurchaseStatus("REFUNDED"))
	assert.False(t, ok)
	_, ok = planTransition(model.PurchaseStatus(""), model.StatusPending)
	assert.False(t, ok)
}
