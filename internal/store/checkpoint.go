// Package store persists emitted snapshot metadata to an optional
// SQLite checkpoint database, following the pack's EventStore shape
// (WAL mode, one table, periodic batch commit). It is a derived,
// optional side channel: the CSV writer remains the system of record
// for the MBP-10 output contract.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/book"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/metrics"
)

// CheckpointStore records which input events produced a visible
// top-10 change.
type CheckpointStore struct {
	db          *sql.DB
	batchCommit int
}

// Open creates (or reuses) the sqlite database at dbPath in WAL mode
// and ensures the snapshots table exists. batchCommit controls how
// many INSERTs accumulate in one transaction before a commit; 0 picks
// a sane default.
func Open(dbPath string, batchCommit int) (*CheckpointStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			row_index INTEGER PRIMARY KEY,
			sequence  INTEGER NOT NULL,
			order_id  INTEGER NOT NULL,
			action    TEXT NOT NULL,
			side      TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}

	if batchCommit <= 0 {
		batchCommit = 500
	}
	return &CheckpointStore{db: db, batchCommit: batchCommit}, nil
}

// Record persists one emitted snapshot's identifying metadata in its
// own transaction. Run, which batches many rows per commit, is the
// preferred entry point for the main ingest path; Record remains for
// callers (tests, one-off tooling) that want a single durable write.
func (s *CheckpointStore) Record(ctx context.Context, snap *book.Snapshot) error {
	if err := s.insert(ctx, s.db, snap); err != nil {
		return err
	}
	metrics.CheckpointWritesTotal.Inc()
	return nil
}

func (s *CheckpointStore) insert(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, snap *book.Snapshot) error {
	_, err := execer.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots (row_index, sequence, order_id, action, side) VALUES (?, ?, ?, ?, ?)",
		snap.RowIndex, snap.Sequence, snap.OrderID, string(rune(snap.Action)), string(rune(snap.Side)),
	)
	if err != nil {
		return fmt.Errorf("store: insert row %d: %w", snap.RowIndex, err)
	}
	return nil
}

// checkpointFlushInterval bounds how long a row can sit uncommitted
// when the ingest side is trickling events in slower than batchCommit
// fills up.
const checkpointFlushInterval = 200 * time.Millisecond

// Run is the batched, async checkpoint writer: it reads snapshots off
// in, accumulating up to batchCommit rows in one transaction, and
// commits early on a periodic tick so a slow trickle of events still
// lands promptly. It drains and commits whatever has accumulated
// before returning, whether in closed cleanly or ctx was canceled, so
// no buffered row is lost on shutdown.
func (s *CheckpointStore) Run(ctx context.Context, in <-chan book.Snapshot) error {
	var tx *sql.Tx
	pending := 0

	ticker := time.NewTicker(checkpointFlushInterval)
	defer ticker.Stop()

	insert := func(snap *book.Snapshot) error {
		if tx == nil {
			var err error
			tx, err = s.db.Begin()
			if err != nil {
				return fmt.Errorf("store: begin batch: %w", err)
			}
		}
		// Not ctx: rows drained after cancellation must still insert.
		if err := s.insert(context.Background(), tx, snap); err != nil {
			tx.Rollback()
			tx = nil
			pending = 0
			return err
		}
		pending++
		return nil
	}

	commit := func() error {
		if tx == nil {
			return nil
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit batch: %w", err)
		}
		metrics.CheckpointWritesTotal.Add(float64(pending))
		tx = nil
		pending = 0
		return nil
	}

	for {
		select {
		case snap, ok := <-in:
			if !ok {
				return commit()
			}
			if err := insert(&snap); err != nil {
				return err
			}
			if pending >= s.batchCommit {
				if err := commit(); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := commit(); err != nil {
				return err
			}

		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case snap, ok := <-in:
					if !ok {
						drained = true
					} else if err := insert(&snap); err != nil {
						return err
					}
				default:
					drained = true
				}
			}
			if err := commit(); err != nil {
				return err
			}
			return ctx.Err()
		}
	}
}

// LastRowIndex returns the highest row index persisted so far, or 0
// if the table is empty. Useful for resuming an interrupted run.
func (s *CheckpointStore) LastRowIndex(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(row_index) FROM snapshots").Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("store: max row_index: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return uint64(last.Int64), nil
}

// Close closes the underlying database handle.
func (s *CheckpointStore) Close() error { return s.db.Close() }
