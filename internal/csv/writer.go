package csv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/book"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/price"
)

// DefaultFlushEvery mirrors the original writer's periodic flush
// cadence during long runs.
const DefaultFlushEvery = 1000

// Writer emits MBP-10 rows to a CSV file, periodically flushing its
// buffer rather than only at close.
type Writer struct {
	f          *os.File
	buf        *bufio.Writer
	w          *csv.Writer
	flushEvery int
	rowsSince  int
}

// CreateWriter truncates (or creates) path and writes the MBP-10
// header line.
func CreateWriter(path string, flushEvery int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create %s: %w", path, err)
	}
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	buf := bufio.NewWriterSize(f, 1<<20)
	w := csv.NewWriter(buf)

	out := &Writer{f: f, buf: buf, w: w, flushEvery: flushEvery}
	if err := out.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return out, nil
}

func (w *Writer) writeHeader() error {
	header := make([]string, 0, 13+30+30+2+1)
	header = append(header, "", "ts_recv", "ts_event", "rtype", "publisher_id",
		"instrument_id", "action", "side", "depth", "price", "size", "flags",
		"ts_in_delta", "sequence")
	for i := 0; i < book.MaxDepth; i++ {
		header = append(header, fmt.Sprintf("bid_px_%02d", i), fmt.Sprintf("bid_sz_%02d", i), fmt.Sprintf("bid_ct_%02d", i))
	}
	for i := 0; i < book.MaxDepth; i++ {
		header = append(header, fmt.Sprintf("ask_px_%02d", i), fmt.Sprintf("ask_sz_%02d", i), fmt.Sprintf("ask_ct_%02d", i))
	}
	header = append(header, "symbol", "order_id")
	return w.w.Write(header)
}

// WriteSnapshot renders one MBP-10 row and flushes every flushEvery
// rows written.
func (w *Writer) WriteSnapshot(snap *book.Snapshot) error {
	rec := make([]string, 0, 13+30+30+2+1)
	rec = append(rec,
		strconv.FormatUint(snap.RowIndex, 10),
		snap.TsRecv,
		snap.TsEvent,
		strconv.Itoa(snap.RType),
		strconv.Itoa(snap.PublisherID),
		strconv.Itoa(snap.InstrumentID),
		string(rune(snap.Action)),
		string(rune(snap.Side)),
		strconv.Itoa(snap.Depth),
		priceStr(snap.PriceScaled),
		strconv.FormatUint(uint64(snap.Size), 10),
		strconv.FormatUint(uint64(snap.Flags), 10),
		strconv.FormatUint(snap.TsInDelta, 10),
		strconv.FormatUint(snap.Sequence, 10),
	)
	for i := 0; i < book.MaxDepth; i++ {
		lvl := snap.BidLevels[i]
		rec = append(rec, priceStr(lvl.PriceScaled), strconv.FormatUint(lvl.Size, 10), strconv.FormatUint(uint64(lvl.Count), 10))
	}
	for i := 0; i < book.MaxDepth; i++ {
		lvl := snap.AskLevels[i]
		rec = append(rec, priceStr(lvl.PriceScaled), strconv.FormatUint(lvl.Size, 10), strconv.FormatUint(uint64(lvl.Count), 10))
	}
	rec = append(rec, snap.Symbol, strconv.FormatUint(snap.OrderID, 10))

	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("csv: write row %d: %w", snap.RowIndex, err)
	}

	w.rowsSince++
	if w.rowsSince >= w.flushEvery {
		w.Flush()
		w.rowsSince = 0
	}
	return w.w.Error()
}

// Flush pushes buffered rows to the underlying file.
func (w *Writer) Flush() {
	w.w.Flush()
	w.buf.Flush()
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	w.Flush()
	return w.f.Close()
}

func priceStr(scaled uint64) string {
	return price.Render(scaled)
}
