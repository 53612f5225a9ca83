package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	associationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dicom",
			Subsystem: "server",
			Name:      "associations_total",
			Help:      "Associations by negotiation outcome.",
		},
		[]string{"ae_title", "outcome"},
	)
	presentationContextsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dicom",
			Subsystem: "server",
			Name:      "presentation_contexts_total",
			Help:      "Negotiated presentation contexts by result.",
		},
		[]string{"ae_title", "result"},
	)
	dimseMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dicom",
			Subsystem: "server",
			Name:      "dimse_messages_total",
			Help:      "DIMSE requests received by command.",
		},
		[]string{"ae_title", "command"},
	)
	connectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dicom",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Currently open DICOM connections.",
		},
		[]string{"ae_title"},
	)
)

// Association negotiation outcomes recorded by RecordAssociation.
const (
	OutcomeEstablished = "established"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
)

// RegisterMetrics registers the collectors with the default registry. Safe
// to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			associationsTotal,
			presentationContextsTotal,
			dimseMessagesTotal,
			connectionsActive,
		)
	})
}

// RecordAssociation counts one association negotiation outcome.
func RecordAssociation(aeTitle, outcome string) {
	RegisterMetrics()
	associationsTotal.WithLabelValues(aeTitle, outcome).Inc()
}

// RecordPresentationContext counts one negotiated context result.
func RecordPresentationContext(aeTitle, result string) {
	RegisterMetrics()
	presentationContextsTotal.WithLabelValues(aeTitle, result).Inc()
}

// RecordDIMSEMessage counts one received DIMSE request.
func RecordDIMSEMessage(aeTitle, command string) {
	RegisterMetrics()
	dimseMessagesTotal.WithLabelValues(aeTitle, command).Inc()
}

// ConnectionOpened tracks a newly accepted connection.
func ConnectionOpened(aeTitle string) {
	RegisterMetrics()
	connectionsActive.WithLabelValues(aeTitle).Inc()
}

// ConnectionClosed tracks a finished connection.
func ConnectionClosed(aeTitle string) {
	RegisterMetrics()
	connectionsActive.WithLabelValues(aeTitle).Dec()
}
