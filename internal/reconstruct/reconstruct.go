// Package reconstruct drives a book.Book from a sequence of MBO
// events, deciding for each one whether a top-10 change occurred and,
// if so, materializing the resulting snapshot.
package reconstruct

import (
	"github.com/aryandadwal2006/mbp-reconstructor/internal/book"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/mbo"
)

// Reconstructor owns a Book and the leading-Clear suppression state.
// It is not safe for concurrent use; callers drive it from a single
// goroutine in strict event order.
type Reconstructor struct {
	book *book.Book

	firstClearConsumed bool
	nextRowIndex       uint64
}

// New returns a Reconstructor over a fresh, empty Book using
// book.DefaultSchema.
func New() *Reconstructor {
	return &Reconstructor{book: book.New()}
}

// NewWithSchema returns a Reconstructor over a fresh, empty Book that
// stamps schema's constants onto every emitted snapshot.
func NewWithSchema(schema book.Schema) *Reconstructor {
	return &Reconstructor{book: book.NewWithSchema(schema)}
}

// Book exposes the underlying book for inspection (metrics, tests).
func (r *Reconstructor) Book() *book.Book { return r.book }

// RowIndex returns the number of snapshots emitted so far.
func (r *Reconstructor) RowIndex() uint64 { return r.nextRowIndex }

// Process applies ev to the book and reports whether it produced a
// top-10 change. When it did, out is filled with the resulting
// snapshot and its RowIndex is stamped. out is valid only
// until the next call to Process.
func (r *Reconstructor) Process(ev *mbo.Event, out *book.Snapshot) bool {
	switch ev.Action {
	case mbo.ActionClear:
		if !r.firstClearConsumed {
			r.firstClearConsumed = true
			return false
		}
		r.book.Clear()
		return false

	case mbo.ActionAdd:
		if !r.book.Add(ev) {
			return false
		}
		r.emit(ev, out)
		return true

	case mbo.ActionCancel:
		if !r.book.Cancel(ev) {
			return false
		}
		r.emit(ev, out)
		return true

	case mbo.ActionTrade:
		if !r.book.Trade(ev) {
			return false
		}
		r.emit(ev, out)
		// The output row reports the declared side, but depth must
		// reflect the side the trade actually consumed.
		effectiveSide := r.book.EffectiveSide(ev.Side, ev.PriceScaled)
		out.Depth = r.book.Depth(effectiveSide, ev.PriceScaled)
		return true

	case mbo.ActionFill:
		// The resting-order reduction is delivered by the Cancel that
		// follows with the same order id; Fill itself is a no-op.
		return false

	default:
		// Modify and anything unrecognized: silently ignored, matching
		// the engine's tolerate-gaps-over-strictness policy.
		return false
	}
}

func (r *Reconstructor) emit(ev *mbo.Event, out *book.Snapshot) {
	r.book.Snapshot(ev, out)
	out.RowIndex = r.nextRowIndex
	r.nextRowIndex++
}
