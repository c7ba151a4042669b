package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gymbody"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "code"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and code.",
		},
		[]string{"method", "code"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking operations by gym, category and action.",
		},
		[]string{"gym", "category", "action"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Same-day double booking prompts by outcome.",
		},
		[]string{"gym", "outcome"},
	)

	chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Assistant messages by mode and result.",
		},
		[]string{"mode", "result"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_sync_tasks_total",
			Help:      "Sheets sync tasks by result.",
		},
		[]string{"result"},
	)

	sessionsInWindow = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_in_window",
			Help:      "Sessions in the bookable window per gym.",
		},
		[]string{"gym"},
	)
)

// Register registers collectors on the default registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, grpcRequests, bookings, conflicts, chatRequests, syncTasks, sessionsInWindow)
	})
}

func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

// IncBooking counts a booking action ("book", "cancel", "waitlist").
func IncBooking(gym, category, action string) {
	bookings.WithLabelValues(gym, category, action).Inc()
}

// IncConflict counts a conflict outcome ("prompted", "confirmed", "declined").
func IncConflict(gym, outcome string) {
	conflicts.WithLabelValues(gym, outcome).Inc()
}

func IncChat(mode, result string) {
	chatRequests.WithLabelValues(mode, result).Inc()
}

func IncSync(result string) {
	syncTasks.WithLabelValues(result).Inc()
}

func SetSessionsInWindow(gym string, n int) {
	sessionsInWindow.WithLabelValues(gym).Set(float64(n))
}
