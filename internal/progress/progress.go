// Package progress logs periodic run progress, matching the original
// source's "every 50,000 orders" cadence, and increments the
// corresponding Prometheus counters on every call.
package progress

import (
	"github.com/rs/zerolog"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/book"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/metrics"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/memstats"
)

// Reporter logs progress every N processed events.
type Reporter struct {
	logger    zerolog.Logger
	everyN    int
	processed uint64
	emitted   uint64
	total     uint64 // 0 if unknown; percent complete is omitted in that case
}

// NewReporter returns a Reporter that logs every everyN events. total
// is the expected input size for a percent-complete figure; pass 0 if
// unknown.
func NewReporter(logger zerolog.Logger, everyN int, total uint64) *Reporter {
	if everyN <= 0 {
		everyN = 50_000
	}
	return &Reporter{logger: logger, everyN: everyN, total: total}
}

// Tick records one processed event and, if emitted is true, one
// emitted snapshot, logging a summary line and a memory checkpoint
// every everyN events. b is the book driving this run; its current
// level/order counts are published as gauges at the same cadence.
func (r *Reporter) Tick(emitted bool, b *book.Book) {
	r.processed++
	metrics.EventsProcessedTotal.Inc()
	if emitted {
		r.emitted++
		metrics.SnapshotsEmittedTotal.Inc()
	}
	if r.processed%uint64(r.everyN) != 0 {
		return
	}

	bidLevels, askLevels := b.LevelCounts()
	metrics.BookLevelsCurrent.WithLabelValues("bid").Set(float64(bidLevels))
	metrics.BookLevelsCurrent.WithLabelValues("ask").Set(float64(askLevels))
	metrics.ActiveOrdersCurrent.Set(float64(b.TotalOrders()))

	ev := r.logger.Info().Uint64("processed", r.processed).Uint64("snapshots_emitted", r.emitted)
	if r.total > 0 {
		pct := float64(r.processed) / float64(r.total) * 100
		ev = ev.Float64("percent_complete", pct).Uint64("total", r.total)
	}
	ev.Msg("progress")

	memstats.Log(r.logger, "periodic")
}

// Processed returns the running count of processed events.
func (r *Reporter) Processed() uint64 { return r.processed }

// Emitted returns the running count of emitted snapshots.
func (r *Reporter) Emitted() uint64 { return r.emitted }
