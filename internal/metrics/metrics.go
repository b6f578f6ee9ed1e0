package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rungroj"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_submissions_total",
			Help:      "Reservation submission attempts by final workflow state.",
		},
		[]string{"state"},
	)

	geocodeLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      "Place search and reverse geocode calls by result.",
		},
		[]string{"op", "result"},
	)

	mailSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_sends_total",
			Help:      "Welcome mail deliveries by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, submissions, geocodeLookups, mailSends)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSubmission counts a submission that ended in state.
func IncSubmission(state string) {
	submissions.WithLabelValues(state).Inc()
}

// IncGeocode counts a geocoder call; result is "ok" or "error".
func IncGeocode(op, result string) {
	geocodeLookups.WithLabelValues(op, result).Inc()
}

// IncMail counts a welcome mail attempt.
func IncMail(result string) {
	mailSends.WithLabelValues(result).Inc()
}
