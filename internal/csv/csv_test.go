package csv

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/book"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/mbo"
)

func TestReaderResolvesColumnsByNameNotPosition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbo.csv")
	// Columns deliberately reordered relative to the canonical header.
	content := "side,action,price,size,order_id,ts_recv,ts_event,symbol,sequence,flags,ts_in_delta,rtype,publisher_id,instrument_id\n" +
		"B,A,100.5,10,1,2024-01-01T00:00:00Z,2024-01-01T00:00:00Z,TEST,1,0,0,10,2,1108\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	var ev mbo.Event
	if err := r.Read(&ev); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ev.Side != mbo.SideBid || ev.Action != mbo.ActionAdd {
		t.Fatalf("ev = %+v, want side=B action=A", ev)
	}
	if ev.Symbol != "TEST" || ev.OrderID != 1 {
		t.Fatalf("ev = %+v, want symbol=TEST order_id=1", ev)
	}
	if ev.PriceScaled != 100_500_000_000 {
		t.Fatalf("PriceScaled = %d, want 100.5e9", ev.PriceScaled)
	}

	if err := r.Read(&ev); err != io.EOF {
		t.Fatalf("second Read err = %v, want io.EOF", err)
	}
}

func TestReaderSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbo.csv")
	content := "action,side,price,size,order_id,ts_recv,ts_event,symbol,sequence,flags,ts_in_delta,rtype,publisher_id,instrument_id\n" +
		",,,,,,,,,,,,,\n" +
		"A,B,100,10,1,t1,t1,TEST,1,0,0,10,2,1108\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	var ev mbo.Event
	if err := r.Read(&ev); err != nil {
		t.Fatalf("Read should skip the malformed row and return the valid one: %v", err)
	}
	if ev.OrderID != 1 {
		t.Fatalf("expected to land on the second row, got %+v", ev)
	}
	if r.Errors != 1 {
		t.Fatalf("Errors = %d, want 1", r.Errors)
	}
}

func TestWriterHeaderAndRowFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mbp.csv")

	w, err := CreateWriter(path, 1)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	snap := book.Snapshot{
		RowIndex: 0, TsRecv: "t1", TsEvent: "t1", RType: book.OutputRType,
		PublisherID: book.OutputPublisherID, InstrumentID: book.OutputInstrumentID,
		Action: mbo.ActionAdd, Side: mbo.SideBid, Depth: 0,
		PriceScaled: 100_000_000_000, Size: 10, Symbol: "TEST", OrderID: 1,
	}
	snap.BidLevels[0] = book.Level{PriceScaled: 100_000_000_000, Size: 10, Count: 1}

	if err := w.WriteSnapshot(&snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], ",ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,depth,price,size,flags,ts_in_delta,sequence,bid_px_00") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[0], "ask_px_09,ask_sz_09,ask_ct_09,symbol,order_id") {
		t.Fatalf("header missing trailing columns: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0,t1,t1,10,2,1108,A,B,0,100,10") {
		t.Fatalf("row = %q", lines[1])
	}
}
