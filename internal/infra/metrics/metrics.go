package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	EventsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "events_processed_total", Help: "Total MBO events processed",
	})
	SnapshotsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_emitted_total", Help: "Total MBP-10 snapshots emitted",
	})
	ParseErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parse_errors_total", Help: "Total malformed input rows skipped",
	})
	BookLevelsCurrent = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "book_levels_current", Help: "Current resident price levels by side",
	}, []string{"side"})
	ActiveOrdersCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_orders_current", Help: "Current live order count in the book",
	})
	ProcessDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "process_duration_seconds", Help: "Wall-clock time to process the full input stream",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 20),
	})
	WSReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_reconnects_total", Help: "Live-feed reconnect attempts",
	})
	CheckpointWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkpoint_writes_total", Help: "Rows persisted to the checkpoint store",
	})
)

// Init registers the collector set against a private registry and
// returns it; logger records a single confirmation line.
func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		EventsProcessedTotal, SnapshotsEmittedTotal, ParseErrorsTotal,
		BookLevelsCurrent, ActiveOrdersCurrent, ProcessDurationSeconds,
		WSReconnectsTotal, CheckpointWritesTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("prometheus metrics initialized")
	return reg
}

// Handler returns the HTTP handler serving reg's metrics in the
// Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
