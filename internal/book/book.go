// Package book implements the two-sided price-level order book: the
// PriceLevel aggregate, the Book itself (ordered price maps plus a
// per-order index), and depth-10 snapshot materialization.
//
// Both sides are kept as a map[uint64]*PriceLevel for O(1) lookup plus
// a sorted []uint64 of resident prices for ordered iteration. Bids are
// stored ascending and walked back-to-front (descending); asks are
// stored and walked ascending. Insertion/removal of a price touches a
// sorted slice (binary search plus a shift), which for the small
// number of resident price levels typical of a depth-10 feed is the
// contiguous-structure tradeoff the design explicitly allows in place
// of a balanced tree.
package book

import (
	"sort"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/mbo"
)

const MaxDepth = 10

// Default output-schema values for this producer's MBP-10 feed. These
// are fixed literals, not derived from the triggering input event —
// but they are overridable per Book (see Schema/NewWithSchema) so the
// same engine can be pointed at a different venue's MBP-10 feed
// without a code change.
const (
	OutputRType        = 10
	OutputPublisherID  = 2
	OutputInstrumentID = 1108
)

// Schema holds the output-schema constants stamped onto every emitted
// Snapshot. It is independent of anything in the triggering input
// event.
type Schema struct {
	RType        int
	PublisherID  int
	InstrumentID int
}

// DefaultSchema returns the schema this package was originally built
// for (rtype=10, publisher_id=2, instrument_id=1108).
func DefaultSchema() Schema {
	return Schema{RType: OutputRType, PublisherID: OutputPublisherID, InstrumentID: OutputInstrumentID}
}

// orderInfo is the per-order index entry: enough to locate and undo
// an order's contribution to its PriceLevel without scanning either
// side of the book.
type orderInfo struct {
	side        mbo.Side
	priceScaled uint64
	size        uint32
}

// Book holds the live state of one instrument's order book.
type Book struct {
	bidLevels map[uint64]*PriceLevel
	askLevels map[uint64]*PriceLevel
	bidPrices []uint64 // ascending; walked in reverse for best-bid-first
	askPrices []uint64 // ascending; walked forward for best-ask-first

	orders map[uint64]orderInfo
	schema Schema
}

// New returns an empty Book using DefaultSchema.
func New() *Book {
	return NewWithSchema(DefaultSchema())
}

// NewWithSchema returns an empty Book that stamps schema's constants
// onto every emitted Snapshot instead of DefaultSchema's.
func NewWithSchema(schema Schema) *Book {
	return &Book{
		bidLevels: make(map[uint64]*PriceLevel),
		askLevels: make(map[uint64]*PriceLevel),
		orders:    make(map[uint64]orderInfo),
		schema:    schema,
	}
}

// Clear empties the book entirely (the 'R' / Clear action).
func (b *Book) Clear() {
	b.bidLevels = make(map[uint64]*PriceLevel)
	b.askLevels = make(map[uint64]*PriceLevel)
	b.bidPrices = nil
	b.askPrices = nil
	b.orders = make(map[uint64]orderInfo)
}

func (b *Book) levelsFor(side mbo.Side) map[uint64]*PriceLevel {
	if side == mbo.SideBid {
		return b.bidLevels
	}
	return b.askLevels
}

func (b *Book) pricesFor(side mbo.Side) []uint64 {
	if side == mbo.SideBid {
		return b.bidPrices
	}
	return b.askPrices
}

func (b *Book) setPricesFor(side mbo.Side, prices []uint64) {
	if side == mbo.SideBid {
		b.bidPrices = prices
	} else {
		b.askPrices = prices
	}
}

// insertPrice inserts p into the side's sorted price slice if not
// already present, keeping it ascending.
func insertPrice(prices []uint64, p uint64) []uint64 {
	i := sort.Search(len(prices), func(i int) bool { return prices[i] >= p })
	if i < len(prices) && prices[i] == p {
		return prices
	}
	prices = append(prices, 0)
	copy(prices[i+1:], prices[i:])
	prices[i] = p
	return prices
}

// removePrice deletes p from the side's sorted price slice.
func removePrice(prices []uint64, p uint64) []uint64 {
	i := sort.Search(len(prices), func(i int) bool { return prices[i] >= p })
	if i >= len(prices) || prices[i] != p {
		return prices
	}
	return append(prices[:i], prices[i+1:]...)
}

// Add inserts a new resting order. It rejects events with an invalid
// side, a zero price, or a zero size (no mutation, no top-10 effect).
// Returns true iff the resulting level lands within the top 10 of its
// side.
func (b *Book) Add(ev *mbo.Event) bool {
	if !ev.Valid() || ev.PriceScaled == 0 || ev.Size == 0 {
		return false
	}
	b.orders[ev.OrderID] = orderInfo{side: ev.Side, priceScaled: ev.PriceScaled, size: ev.Size}

	levels := b.levelsFor(ev.Side)
	level, ok := levels[ev.PriceScaled]
	if !ok {
		level = newPriceLevel(ev.PriceScaled)
		levels[ev.PriceScaled] = level
		b.setPricesFor(ev.Side, insertPrice(b.pricesFor(ev.Side), ev.PriceScaled))
	}
	level.insert(ev.OrderID, uint64(ev.Size))

	return b.affectsTopLevels(ev.Side, ev.PriceScaled)
}

// Cancel removes a resting order. A cancel of an unknown order id is
// tolerated as a silent no-op (returns false). Returns true iff the
// removed level was in the top 10 before the removal took effect.
func (b *Book) Cancel(ev *mbo.Event) bool {
	info, ok := b.orders[ev.OrderID]
	if !ok {
		return false
	}

	affectsTop := b.affectsTopLevels(info.side, info.priceScaled)

	levels := b.levelsFor(info.side)
	if level, ok := levels[info.priceScaled]; ok {
		if empty := level.remove(ev.OrderID, uint64(info.size)); empty {
			delete(levels, info.priceScaled)
			b.setPricesFor(info.side, removePrice(b.pricesFor(info.side), info.priceScaled))
		}
	}
	delete(b.orders, ev.OrderID)

	return affectsTop
}

// Trade determines the effective side a Trade event actually affects
// and reports whether that side's level at the event's price is
// currently in the top 10. Trade never mutates the book: the resting
// order reduction is delivered by the Fill+Cancel pair that follows
// (see internal/reconstruct).
func (b *Book) Trade(ev *mbo.Event) bool {
	if ev.Side == mbo.SideNeutral {
		return false
	}
	effectiveSide := b.effectiveSide(ev.Side, ev.PriceScaled)
	return b.affectsTopLevels(effectiveSide, ev.PriceScaled)
}

// EffectiveSide exposes the T→F→C effective-side resolution so the
// Reconstructor can compute the correct depth for a Trade snapshot,
// whose declared side (reported in the output row) may differ from
// the side actually consumed.
func (b *Book) EffectiveSide(declared mbo.Side, priceScaled uint64) mbo.Side {
	return b.effectiveSide(declared, priceScaled)
}

// effectiveSide implements the T→F→C effective-side rule: a trade
// declared on a side with no resting level at the event's price is
// actually consuming the opposite side.
func (b *Book) effectiveSide(declared mbo.Side, priceScaled uint64) mbo.Side {
	switch declared {
	case mbo.SideAsk:
		if level, ok := b.askLevels[priceScaled]; !ok || level.OrderCount() == 0 {
			return mbo.SideBid
		}
	case mbo.SideBid:
		if level, ok := b.bidLevels[priceScaled]; !ok || level.OrderCount() == 0 {
			return mbo.SideAsk
		}
	}
	return declared
}

func (b *Book) affectsTopLevels(side mbo.Side, priceScaled uint64) bool {
	d := b.Depth(side, priceScaled)
	return d >= 0 && d < MaxDepth
}

// Depth returns the 0-based rank of priceScaled within the given
// side's top 10, or -1 if it is absent or beyond rank 9.
func (b *Book) Depth(side mbo.Side, priceScaled uint64) int {
	prices := b.pricesFor(side)
	n := len(prices)
	if side == mbo.SideBid {
		// bidPrices is ascending; best bid is the last element.
		for rank := 0; rank < MaxDepth && rank < n; rank++ {
			if prices[n-1-rank] == priceScaled {
				return rank
			}
		}
		return -1
	}
	for rank := 0; rank < MaxDepth && rank < n; rank++ {
		if prices[rank] == priceScaled {
			return rank
		}
	}
	return -1
}

// Level is one (price, size, count) triple in a snapshot.
type Level struct {
	PriceScaled uint64
	Size        uint64
	Count       uint32
}

// Snapshot is a depth-10 MBP row: the triggering event's metadata
// plus up to 10 populated levels per side (unused slots are zero
// Levels).
type Snapshot struct {
	RowIndex     uint64
	TsRecv       string
	TsEvent      string
	RType        int
	PublisherID  int
	InstrumentID int
	Action       mbo.Action
	Side         mbo.Side
	Depth        int
	PriceScaled  uint64
	Size         uint32
	Flags        uint32
	TsInDelta    uint64
	Sequence     uint64
	Symbol       string
	OrderID      uint64

	BidLevels [MaxDepth]Level
	AskLevels [MaxDepth]Level
}

// Snapshot fills out with the current book state and the triggering
// event's metadata. out is caller-owned; Snapshot never allocates a
// new one, so callers wanting to retain a row across the next mutating
// call must copy it themselves.
func (b *Book) Snapshot(ev *mbo.Event, out *Snapshot) {
	*out = Snapshot{
		TsRecv:       ev.TsRecv,
		TsEvent:      ev.TsEvent,
		RType:        b.schema.RType,
		PublisherID:  b.schema.PublisherID,
		InstrumentID: b.schema.InstrumentID,
		Action:       ev.Action,
		Side:         ev.Side,
		PriceScaled:  ev.PriceScaled,
		Size:         ev.Size,
		Flags:        ev.Flags,
		TsInDelta:    ev.TsInDelta,
		Sequence:     ev.Sequence,
		Symbol:       ev.Symbol,
		OrderID:      ev.OrderID,
	}
	out.Depth = b.Depth(ev.Side, ev.PriceScaled)

	n := len(b.bidPrices)
	for rank := 0; rank < MaxDepth && rank < n; rank++ {
		p := b.bidPrices[n-1-rank]
		lvl := b.bidLevels[p]
		out.BidLevels[rank] = Level{PriceScaled: p, Size: lvl.TotalSize, Count: uint32(lvl.OrderCount())}
	}
	for rank, p := range b.askPrices {
		if rank >= MaxDepth {
			break
		}
		lvl := b.askLevels[p]
		out.AskLevels[rank] = Level{PriceScaled: p, Size: lvl.TotalSize, Count: uint32(lvl.OrderCount())}
	}
}

// TotalOrders reports the number of live orders tracked by the book.
func (b *Book) TotalOrders() int { return len(b.orders) }

// LevelCounts reports the number of resident price levels per side.
func (b *Book) LevelCounts() (bidLevels, askLevels int) {
	return len(b.bidPrices), len(b.askPrices)
}

// BestBidAsk returns the best bid and ask scaled prices, 0 if a side
// is empty.
func (b *Book) BestBidAsk() (bestBid, bestAsk uint64) {
	if n := len(b.bidPrices); n > 0 {
		bestBid = b.bidPrices[n-1]
	}
	if len(b.askPrices) > 0 {
		bestAsk = b.askPrices[0]
	}
	return
}
