package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "cme_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one job run.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: outcome={success,failure,dry_run}
	StageDuration *prometheus.HistogramVec // labels: stage={extract,transform,load}

	// Record flow.
	RecordsExtracted prometheus.Counter
	RecordsDropped   *prometheus.CounterVec // labels: reason={incomplete,duplicate}
	RecordsLoaded    prometheus.Counter
	Anomalies        *prometheus.CounterVec // labels: rule

	// Collaborators.
	APIRequestDuration *prometheus.HistogramVec // labels: status
	ArchiveWrites      *prometheus.CounterVec   // labels: outcome={success,error}
	Notifications      *prometheus.CounterVec   // labels: status, outcome={delivered,failed}

	LastSuccessTimestamp prometheus.Gauge

	gatherer prometheus.Gatherer
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "CME records returned by the DONKI API.",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records removed during transform, by reason.",
		}, []string{"reason"}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Rows appended to the warehouse table.",
		}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Plausibility check violations by rule.",
		}, []string{"rule"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "donki_request_duration_seconds",
			Help:      "DONKI API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
		ArchiveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_writes_total",
			Help:      "Raw response archive writes by outcome.",
		}, []string{"outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Run notifications by status and delivery outcome.",
		}, []string{"status", "outcome"}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful load.",
		}),
	}
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	m.gatherer = prometheus.DefaultGatherer
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	m.gatherer = reg
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.StageDuration,
		m.RecordsExtracted,
		m.RecordsDropped,
		m.RecordsLoaded,
		m.Anomalies,
		m.APIRequestDuration,
		m.ArchiveWrites,
		m.Notifications,
		m.LastSuccessTimestamp,
	}
}

// Push sends the current values to a Prometheus Pushgateway under job. The job
// exits right after a run, so metrics are pushed rather than scraped.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
