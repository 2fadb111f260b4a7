package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/msgbuf/internal/message"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgbuf",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "msgbuf",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgbuf",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Descriptor resolutions by outcome.",
		},
		[]string{"outcome"},
	)
	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgbuf",
			Subsystem: "p2p",
			Name:      "transfers_total",
			Help:      "Point-to-point transfers by direction and result.",
		},
		[]string{"direction", "datatype", "success"},
	)
	transferBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgbuf",
			Subsystem: "p2p",
			Name:      "bytes_total",
			Help:      "Payload bytes moved by direction.",
		},
		[]string{"direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, resolutions, transfers, transferBytes)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordResolve counts one resolver call by the failure kind of err.
func RecordResolve(err error) {
	RegisterMetrics()
	resolutions.WithLabelValues(ResolveOutcome(err)).Inc()
}

// ResolveOutcome labels a resolver result.
func ResolveOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, message.ErrLookup):
		return "lookup_error"
	case errors.Is(err, message.ErrOutOfBounds):
		return "bounds_error"
	case errors.Is(err, message.ErrValue):
		return "value_error"
	default:
		return "error"
	}
}

func RecordTransfer(direction, datatype string, bytes int, success bool) {
	RegisterMetrics()
	transfers.WithLabelValues(direction, datatype, strconv.FormatBool(success)).Inc()
	if success {
		transferBytes.WithLabelValues(direction).Add(float64(bytes))
	}
}
