package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("availability")
		IncReservation("committed")
		IncReservation("conflict")
		IncNotifyTask("delivered")
	})
}

func TestReservationOutcomes(t *testing.T) {
	Register()

	for _, outcome := range []string{"committed", "cancelled", "updated", "conflict", "no_capacity"} {
		before := testutil.ToFloat64(reservations.WithLabelValues(outcome))
		IncReservation(outcome)
		assert.Equal(t, before+1, testutil.ToFloat64(reservations.WithLabelValues(outcome)), outcome)
	}
}

func TestNotifyTaskResults(t *testing.T) {
	Register()

	for _, result := range []string{"delivered", "retried", "failed"} {
		before := testutil.ToFloat64(notifyTasks.WithLabelValues(result))
		IncNotifyTask(result)
		assert.Equal(t, before+1, testutil.ToFloat64(notifyTasks.WithLabelValues(result)), result)
	}
}
