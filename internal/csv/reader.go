// Package csv streams MBO input rows into mbo.Event values and
// renders Book snapshots back out as MBP-10 output rows, both via the
// standard library's encoding/csv over a buffered file handle.
package csv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/mbo"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/price"
)

// columnIndices resolves each expected MBO column by header name
// rather than position, matching the original source's ColumnIndices
// approach so column reordering in the input never breaks parsing.
type columnIndices struct {
	tsRecv       int
	tsEvent      int
	rtype        int
	publisherID  int
	instrumentID int
	action       int
	side         int
	price        int
	size         int
	orderID      int
	flags        int
	tsInDelta    int
	sequence     int
	symbol       int
}

func unresolved() columnIndices {
	return columnIndices{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
}

func resolveColumns(header []string) columnIndices {
	idx := unresolved()
	for i, name := range header {
		switch name {
		case "ts_recv":
			idx.tsRecv = i
		case "ts_event":
			idx.tsEvent = i
		case "rtype":
			idx.rtype = i
		case "publisher_id":
			idx.publisherID = i
		case "instrument_id":
			idx.instrumentID = i
		case "action":
			idx.action = i
		case "side":
			idx.side = i
		case "price":
			idx.price = i
		case "size":
			idx.size = i
		case "order_id":
			idx.orderID = i
		case "flags":
			idx.flags = i
		case "ts_in_delta":
			idx.tsInDelta = i
		case "sequence":
			idx.sequence = i
		case "symbol":
			idx.symbol = i
		}
	}
	return idx
}

// Reader streams mbo.Event values from an MBO CSV file.
type Reader struct {
	f       *os.File
	r       *csv.Reader
	cols    columnIndices
	Errors  int // rows skipped for malformed content
	Records int // rows successfully decoded
}

// OpenReader opens path and parses its header line, resolving column
// indices by name.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	cr := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: read header from %s: %w", path, err)
	}

	return &Reader{f: f, r: cr, cols: resolveColumns(header)}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }

// Read decodes the next row into ev, returning io.EOF once the file
// is exhausted. Malformed rows are counted and skipped rather than
// treated as fatal, per the engine's tolerate-gaps policy; the caller
// should loop on Read until io.EOF.
func (r *Reader) Read(ev *mbo.Event) error {
	for {
		rec, err := r.r.Read()
		if err == io.EOF {
			return io.EOF
		}
		if err != nil {
			r.Errors++
			continue
		}
		if !r.decode(rec, ev) {
			r.Errors++
			continue
		}
		r.Records++
		return nil
	}
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func (r *Reader) decode(rec []string, ev *mbo.Event) bool {
	*ev = mbo.Event{}

	ev.TsRecv = field(rec, r.cols.tsRecv)
	ev.TsEvent = field(rec, r.cols.tsEvent)
	ev.Symbol = field(rec, r.cols.symbol)

	if v := field(rec, r.cols.action); len(v) > 0 {
		ev.Action = mbo.Action(v[0])
	}
	if v := field(rec, r.cols.side); len(v) > 0 {
		ev.Side = mbo.Side(v[0])
	} else {
		ev.Side = mbo.SideNeutral
	}

	ev.RType = atoiOrZero(field(rec, r.cols.rtype))
	ev.PublisherID = atoiOrZero(field(rec, r.cols.publisherID))
	ev.InstrumentID = atoiOrZero(field(rec, r.cols.instrumentID))
	ev.Flags = uint32(atoiOrZero(field(rec, r.cols.flags)))
	ev.TsInDelta = uint64(atoi64OrZero(field(rec, r.cols.tsInDelta)))
	ev.Sequence = uint64(atoi64OrZero(field(rec, r.cols.sequence)))
	ev.OrderID = uint64(atoi64OrZero(field(rec, r.cols.orderID)))
	ev.Size = uint32(atoi64OrZero(field(rec, r.cols.size)))
	ev.PriceScaled = price.ParseScaled(field(rec, r.cols.price))

	return ev.Action != mbo.ActionUnknown
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func atoi64OrZero(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
