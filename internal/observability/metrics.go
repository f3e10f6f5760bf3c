package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	telegramOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p1ctl",
			Subsystem: "telegram",
			Name:      "outcomes_total",
			Help:      "Telegram outcomes by checksum status.",
		},
		[]string{"source", "status"},
	)
	telegramBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p1ctl",
			Subsystem: "telegram",
			Name:      "bytes_total",
			Help:      "Bytes carried by assembled telegrams and fragments.",
		},
		[]string{"source", "status"},
	)
	droppedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p1ctl",
			Subsystem: "telegram",
			Name:      "dropped_bytes_total",
			Help:      "Bytes discarded while synchronizing to a start marker.",
		},
		[]string{"source"},
	)
	sourceReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p1ctl",
			Subsystem: "source",
			Name:      "reconnects_total",
			Help:      "Byte source re-establishments after I/O failure.",
		},
		[]string{"source"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p1ctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "p1ctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			telegramOutcomes,
			telegramBytes,
			droppedBytes,
			sourceReconnects,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordOutcome(source, status string, size int) {
	RegisterMetrics()
	telegramOutcomes.WithLabelValues(source, status).Inc()
	telegramBytes.WithLabelValues(source, status).Add(float64(size))
}

func RecordDropped(source string, n uint64) {
	RegisterMetrics()
	if n == 0 {
		return
	}
	droppedBytes.WithLabelValues(source).Add(float64(n))
}

func RecordReconnect(source string) {
	RegisterMetrics()
	sourceReconnects.WithLabelValues(source).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
