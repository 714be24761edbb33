package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackLedgerCounts(t *testing.T) {
	before := testutil.ToFloat64(ledgerOperations.WithLabelValues("reserve", "refused"))
	TrackLedger("reserve", "refused", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerOperations.WithLabelValues("reserve", "refused")))
}

func TestSetAvailableAndForget(t *testing.T) {
	SetAvailable(77, 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(availableTickets.WithLabelValues("77")))

	ForgetEvent(77)
	assert.Equal(t, 0, testutil.CollectAndCount(availableTickets))
}
