package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var HistogramBuckets = []float64{
	// --- Fast (0 - 500ms) ---
	5, 10, 25, 50, 100, 250, 500,

	// --- Medium (500ms - 5s) ---
	1000, 2000, 5000,

	// --- Slow sweeps (5s - 2m) ---
	10000, 30000, 60000, 120000,
}

// Metric is a definition for the name, description, type and ID of each metric.
type Metric struct {
	ID          string
	Name        string
	Description string
	Type        string
	Args        []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "gauge":
		metric = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
		)
	}
	return metric
}

var verdictsTotal = &Metric{
	ID:          "verdicts",
	Name:        "verdicts_total",
	Description: "Match engine verdicts applied, partitioned by kind and failing rule.",
	Type:        "counter_vec",
	Args:        []string{"kind", "rule"},
}

var receiptsTotal = &Metric{
	ID:          "receipts",
	Name:        "receipts_ingested_total",
	Description: "Receipt ingestion attempts, partitioned by outcome (new, duplicate, invalid).",
	Type:        "counter_vec",
	Args:        []string{"outcome"},
}

var sweepDur = &Metric{
	ID:          "sweepDur",
	Name:        "sweep_dur_ms",
	Description: "Sweep latency in milliseconds.",
	Type:        "histogram",
}

var sweepSessions = &Metric{
	ID:          "sweepSessions",
	Name:        "sweep_sessions_total",
	Description: "Sessions touched by sweeps, partitioned by outcome.",
	Type:        "counter_vec",
	Args:        []string{"outcome"},
}

var fulfillmentErrors = &Metric{
	ID:          "fulfillmentErrors",
	Name:        "fulfillment_errors_total",
	Description: "Fulfillment notifications that failed after a session was verified.",
	Type:        "counter",
}

// Metrics owns a dedicated registry so processes and tests never collide on
// the global one. All methods are safe on a nil receiver.
type Metrics struct {
	registry          *prometheus.Registry
	verdicts          *prometheus.CounterVec
	receipts          *prometheus.CounterVec
	sweepDur          prometheus.Histogram
	sweepSessions     *prometheus.CounterVec
	fulfillmentErrors prometheus.Counter
}

func New(subsystem string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg}
	for _, def := range []*Metric{verdictsTotal, receiptsTotal, sweepDur, sweepSessions, fulfillmentErrors} {
		c := NewMetric(def, subsystem)
		reg.MustRegister(c)
		switch def {
		case verdictsTotal:
			m.verdicts = c.(*prometheus.CounterVec)
		case receiptsTotal:
			m.receipts = c.(*prometheus.CounterVec)
		case sweepDur:
			m.sweepDur = c.(prometheus.Histogram)
		case sweepSessions:
			m.sweepSessions = c.(*prometheus.CounterVec)
		case fulfillmentErrors:
			m.fulfillmentErrors = c.(prometheus.Counter)
		}
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveVerdict(kind, rule string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(kind, rule).Inc()
}

func (m *Metrics) ObserveReceipt(outcome string) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSweep(elapsed time.Duration, expired, verified, failed, stillPending, errs int) {
	if m == nil {
		return
	}
	m.sweepDur.Observe(float64(elapsed.Milliseconds()))
	m.sweepSessions.WithLabelValues("expired").Add(float64(expired))
	m.sweepSessions.WithLabelValues("verified").Add(float64(verified))
	m.sweepSessions.WithLabelValues("failed").Add(float64(failed))
	m.sweepSessions.WithLabelValues("still_pending").Add(float64(stillPending))
	m.sweepSessions.WithLabelValues("error").Add(float64(errs))
}

func (m *Metrics) ObserveFulfillmentError() {
	if m == nil {
		return
	}
	m.fulfillmentErrors.Inc()
}
