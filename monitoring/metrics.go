package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_scan_operations_total",
			Help: "Total gate scan operations by outcome",
		},
		[]string{"outcome"},
	)

	verifyOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_verify_operations_total",
			Help: "Total gate verify operations by outcome",
		},
		[]string{"outcome"},
	)

	ticketRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_redemptions_total",
			Help: "Total successful ticket redemptions per event",
		},
		[]string{"event_id"},
	)

	oracleLookups = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ownership_oracle_lookup_seconds",
			Help:    "Latency of ownership oracle lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// Monitor records gate protocol metrics. A nil Monitor is safe to call.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// TrackScan records a scan attempt; outcome is "success" or an error code.
func (m *Monitor) TrackScan(outcome string) {
	scanOperations.WithLabelValues(outcome).Inc()
}

// TrackVerify records a verify attempt; outcome is "success" or an error code.
func (m *Monitor) TrackVerify(outcome string) {
	verifyOperations.WithLabelValues(outcome).Inc()
}

// TrackRedemption records a successful redemption.
func (m *Monitor) TrackRedemption(eventID string) {
	ticketRedemptions.WithLabelValues(eventID).Inc()
}

// TrackOracleLookup records an ownership oracle lookup.
func (m *Monitor) TrackOracleLookup(outcome string, duration time.Duration) {
	oracleLookups.WithLabelValues(outcome).Observe(duration.Seconds())
}
