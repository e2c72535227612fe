package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgelink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Frames that passed checksum validation.",
		},
	)
	framesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "link",
			Name:      "frames_dropped_total",
			Help:      "Frames inferred lost from sequence gaps.",
		},
	)
	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "link",
			Name:      "frame_errors_total",
			Help:      "Frames rejected by the parser.",
		},
		[]string{"reason"},
	)
	bytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "link",
			Name:      "bytes_read_total",
			Help:      "Raw bytes fed to the parser.",
		},
	)
	framesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgelink",
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Frames finalized and written.",
		},
	)
	activeChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "edgelink",
			Subsystem: "link",
			Name:      "active_channels",
			Help:      "Connected channels being parsed.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesReceived, framesDropped, frameErrors,
			bytesRead, framesSent, activeChannels,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrameReceived counts one accepted frame and the gap it revealed.
func RecordFrameReceived(dropped uint8) {
	RegisterMetrics()
	framesReceived.Inc()
	if dropped > 0 {
		framesDropped.Add(float64(dropped))
	}
}

func RecordFrameError(reason string) {
	RegisterMetrics()
	frameErrors.WithLabelValues(reason).Inc()
}

func RecordBytesRead(n int) {
	RegisterMetrics()
	bytesRead.Add(float64(n))
}

func RecordFrameSent() {
	RegisterMetrics()
	framesSent.Inc()
}

func ChannelOpened() {
	RegisterMetrics()
	activeChannels.Inc()
}

func ChannelClosed() {
	RegisterMetrics()
	activeChannels.Dec()
}
