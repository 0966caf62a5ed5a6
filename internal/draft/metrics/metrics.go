package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the draft module.
type Metrics struct {
	DraftsCreated  prometheus.Counter
	DraftsUpdated  prometheus.Counter
	DraftsDeleted  prometheus.Counter
	UpsertFailures *prometheus.CounterVec
	UpsertDuration prometheus.Histogram
}

// New registers the draft metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DraftsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bizreg_drafts_created_total",
			Help: "Total number of drafts created",
		}),
		DraftsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bizreg_drafts_updated_total",
			Help: "Total number of draft updates committed",
		}),
		DraftsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bizreg_drafts_deleted_total",
			Help: "Total number of drafts deleted",
		}),
		UpsertFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bizreg_upsert_failures_total",
			Help: "Upserts that did not commit, by error code",
		}, []string{"code"}),
		UpsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bizreg_upsert_duration_seconds",
			Help:    "Duration of draft upserts including file writes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.DraftsCreated.Inc()
}

func (m *Metrics) IncrementUpdated() {
	m.DraftsUpdated.Inc()
}

func (m *Metrics) IncrementDeleted() {
	m.DraftsDeleted.Inc()
}

func (m *Metrics) IncrementUpsertFailure(code string) {
	m.UpsertFailures.WithLabelValues(code).Inc()
}

// ObserveUpsert records the duration of an upsert.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveUpsert(start time.Time) {
	m.UpsertDuration.Observe(time.Since(start).Seconds())
}
