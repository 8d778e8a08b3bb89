package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raaihank/pii-sentinel/internal/privacy"
)

// Metrics groups all Prometheus instruments used by the redaction pipeline
// and the HTTP service. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RecordsProcessed prometheus.Counter
	PIIRecords       prometheus.Counter
	CompositeHits    prometheus.Counter
	DecodeFailures   prometheus.Counter
	MaskedFields     *prometheus.CounterVec
	BatchDuration    prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers the instruments on reg. When reg is nil a private registry
// is created.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RecordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Records analyzed.",
		}),
		PIIRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pii_records_total",
			Help:      "Records flagged as containing PII.",
		}),
		CompositeHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composite_rule_hits_total",
			Help:      "Records flagged by quasi-identifier co-occurrence.",
		}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Record payloads that could not be decoded.",
		}),
		MaskedFields: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "masked_fields_total",
			Help:      "Masked fields by PII category and detection source.",
		}, []string{"category", "source"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent redacting one batch of records.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		gatherer: reg,
	}
}

// ObserveResult records the outcome of one analyzed record
func (m *Metrics) ObserveResult(result privacy.RecordResult, decodeFailed bool) {
	if m == nil {
		return
	}
	m.RecordsProcessed.Inc()
	if decodeFailed {
		m.DecodeFailures.Inc()
	}
	if result.IsPII {
		m.PIIRecords.Inc()
	}
	if result.Composite {
		m.CompositeHits.Inc()
	}
	for _, f := range result.Findings {
		m.MaskedFields.WithLabelValues(string(f.Category), string(f.Source)).Inc()
	}
}

// ObserveBatch records how long a batch took
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
