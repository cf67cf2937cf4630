package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Leganyst/consultation-booking/internal/apperror"
)

// SchedulingMetrics exposes counters/histograms for scheduling operations.
// A nil *SchedulingMetrics is valid and records nothing.
type SchedulingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	claimConflicts    prometheus.Counter
	slotsGenerated    prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "scheduling",
			Name:      "operation_duration_seconds",
			Help:      "Latency of scheduling operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		claimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "ledger",
			Name:      "claim_conflicts_total",
			Help:      "Slot claims lost because the slot was already booked",
		}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "generator",
			Name:      "slots_generated_total",
			Help:      "Slots materialised from availability rules",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationDuration, m.claimConflicts, m.slotsGenerated)
	return m
}

// ObserveOperation records one finished operation.
func (m *SchedulingMetrics) ObserveOperation(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(op, Outcome(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if errors.Is(err, apperror.ErrSlotAlreadyBooked) {
		m.claimConflicts.Inc()
	}
}

func (m *SchedulingMetrics) ObserveSlotsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsGenerated.Add(float64(n))
}

// Outcome buckets an error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrSlotAlreadyBooked):
		return "conflict"
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, apperror.ErrForbidden), errors.Is(err, apperror.ErrUnauthenticated):
		return "denied"
	case errors.Is(err, apperror.ErrSlotNotFound), errors.Is(err, apperror.ErrBookingNotFound), errors.Is(err, apperror.ErrRuleNotFound):
		return "not_found"
	default:
		return "rejected"
	}
}
