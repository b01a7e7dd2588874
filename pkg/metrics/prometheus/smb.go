// Package prometheus implements metrics.Metrics on the Prometheus client.
package prometheus

import (
	"time"

	"github.com/ineffectivecoder/gosmbclient/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// smbMetrics is the Prometheus implementation of metrics.Metrics.
type smbMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	bytes       *prometheus.CounterVec
	credits     prometheus.Gauge
	disconnects prometheus.Counter
}

// New registers the client collectors on reg. A nil reg returns nil,
// which disables collection.
func New(reg prometheus.Registerer) metrics.Metrics {
	if reg == nil {
		return nil
	}
	return &smbMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "smbclient_requests_total",
				Help: "Total number of SMB2 requests by command and response status",
			},
			[]string{"command", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "smbclient_request_duration_milliseconds",
				Help: "Round trip time of SMB2 requests in milliseconds",
				Buckets: []float64{
					0.5,  // 500us - local server
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms - LAN
					50,   // 50ms
					100,  // 100ms - WAN
					500,  // 500ms
					1000, // 1s - large reads
					5000, // 5s
				},
			},
			[]string{"command"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "smbclient_bytes_total",
				Help: "Total payload bytes moved by READ and WRITE",
			},
			[]string{"direction"},
		),
		credits: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "smbclient_credits_granted",
				Help: "Credits granted by the most recent response",
			},
		),
		disconnects: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "smbclient_disconnects_total",
				Help: "Connections torn down by transport errors",
			},
		),
	}
}

func (m *smbMetrics) RecordRequest(command, status string, d time.Duration) {
	m.requests.WithLabelValues(command, status).Inc()
	m.duration.WithLabelValues(command).Observe(float64(d.Microseconds()) / 1000)
}

func (m *smbMetrics) RecordBytes(direction string, n uint64) {
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *smbMetrics) RecordCredits(granted uint16) {
	m.credits.Set(float64(granted))
}

func (m *smbMetrics) RecordDisconnect() {
	m.disconnects.Inc()
}
