package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/book"
)

func newTestLogger(buf *bytes.Buffer) zerolog.Logger {
	return zerolog.New(buf)
}

func TestTickCountsProcessedAndEmitted(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(newTestLogger(&buf), 3, 0)
	b := book.New()

	r.Tick(true, b)
	r.Tick(false, b)
	r.Tick(true, b)

	if r.Processed() != 3 {
		t.Fatalf("expected 3 processed, got %d", r.Processed())
	}
	if r.Emitted() != 2 {
		t.Fatalf("expected 2 emitted, got %d", r.Emitted())
	}
	if !strings.Contains(buf.String(), `"processed":3`) {
		t.Fatalf("expected a progress line logged on the 3rd tick, got: %s", buf.String())
	}
}

func TestTickOmitsLogBetweenIntervals(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(newTestLogger(&buf), 5, 0)
	b := book.New()

	r.Tick(false, b)
	r.Tick(false, b)

	if buf.Len() != 0 {
		t.Fatalf("expected no log line before reaching everyN, got: %s", buf.String())
	}
}

func TestTickIncludesPercentCompleteWhenTotalKnown(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(newTestLogger(&buf), 1, 200)
	b := book.New()

	r.Tick(false, b)

	if !strings.Contains(buf.String(), `"percent_complete"`) {
		t.Fatalf("expected percent_complete field when total is known, got: %s", buf.String())
	}
}

func TestTickLogsMemoryCheckpoint(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(newTestLogger(&buf), 1, 0)
	b := book.New()

	r.Tick(false, b)

	if !strings.Contains(buf.String(), `"checkpoint":"periodic"`) {
		t.Fatalf("expected a periodic memstats checkpoint line, got: %s", buf.String())
	}
}

func TestNewReporterDefaultsEveryNWhenNonPositive(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(newTestLogger(&buf), 0, 0)
	b := book.New()

	for i := 0; i < 49_999; i++ {
		r.Tick(false, b)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no log before the default 50,000th tick")
	}
	r.Tick(false, b)
	if buf.Len() == 0 {
		t.Fatalf("expected a log line at the default 50,000th tick")
	}
}
