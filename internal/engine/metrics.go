package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	settlements *prometheus.CounterVec
	paidOut     prometheus.Counter
	votes       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplay",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by name and result code.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trustplay",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Time spent in engine operations, including lock wait.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplay",
			Name:      "settlements_total",
			Help:      "Resolved claims by outcome.",
		}, []string{"outcome"}),
		paidOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trustplay",
			Name:      "payout_units_total",
			Help:      "Value transferred from vaults to accepted claimants.",
		}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustplay",
			Name:      "votes_total",
			Help:      "Accepted votes by direction.",
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.settlements, m.paidOut, m.votes)
	}
	return m
}

func (m *Metrics) observe(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = model.ErrorCode(err)
		if result == "" {
			result = "error"
		}
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) settled(accepted bool, payout uint64) {
	if m == nil {
		return
	}
	if accepted {
		m.settlements.WithLabelValues("accepted").Inc()
		m.paidOut.Add(float64(payout))
		return
	}
	m.settlements.WithLabelValues("rejected").Inc()
}

func (m *Metrics) voted(accept bool) {
	if m == nil {
		return
	}
	if accept {
		m.votes.WithLabelValues("for").Inc()
		return
	}
	m.votes.WithLabelValues("against").Inc()
}
