package attachment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bizreg/internal/draft/models"
)

// Metrics counts attachment outcomes.
type Metrics struct {
	Rejected *prometheus.CounterVec
	Stored   *prometheus.CounterVec
}

// NewMetrics registers the attachment metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bizreg_attachments_rejected_total",
			Help: "Uploads rejected before storage, by reason",
		}, []string{"reason"}),
		Stored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bizreg_attachments_stored_total",
			Help: "Files written to object storage, by slot",
		}, []string{"slot"}),
	}
}

func (m *Metrics) IncrementRejected(reason string) {
	m.Rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementStored(slot models.Slot) {
	m.Stored.WithLabelValues(string(slot)).Inc()
}
