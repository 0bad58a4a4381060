package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boothnik",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boothnik",
			Name:      "reservations_total",
			Help:      "Reservation operations by outcome.",
		},
		[]string{"outcome"}, // committed, cancelled, updated, conflict, no_capacity
	)

	notifyTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boothnik",
			Name:      "notify_tasks_total",
			Help:      "Notification outbox tasks by result.",
		},
		[]string{"result"}, // delivered, retried, failed
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservations, notifyTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncReservation counts a reservation operation outcome.
func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

// IncNotifyTask counts a notification task result.
func IncNotifyTask(result string) {
	notifyTasks.WithLabelValues(result).Inc()
}
