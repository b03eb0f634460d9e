// Package price converts between the wire decimal representation of a
// price and the book's internal scaled-integer representation
// (price * 1e9), and back again for emission. All comparison and
// storage in the book happens on the scaled form; decimal conversion
// happens only at this boundary.
package price

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the fixed-point scale applied to decimal prices: 1e9.
const Scale = 1_000_000_000

var scaleDec = decimal.New(1, 9)

// ParseScaled parses a decimal price string into its scaled uint64
// representation, rounding half-up. An empty string parses to 0,
// matching the source's treatment of an absent price field.
func ParseScaled(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Fast path: plain, non-scientific decimal strings are the
	// overwhelming majority of rows in a multi-million-row MBO file;
	// avoid the decimal package's allocation in the hot parse loop
	// and fall back to it only when the fast path can't handle the
	// input exactly (scientific notation, signs, or something else
	// fastScaled doesn't recognize as well-formed).
	if v, ok := fastScaled(s); ok {
		return v
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	scaled := d.Mul(scaleDec).Round(0)
	if scaled.Sign() < 0 {
		return 0
	}
	return uint64(scaled.IntPart())
}

// Render converts a scaled price back into a decimal string, trailing
// zeros and a trailing decimal point stripped; a zero price renders as
// the empty string per the emitter's rendering rule.
func Render(scaled uint64) string {
	if scaled == 0 {
		return ""
	}
	return decimal.New(int64(scaled), -9).String()
}

// RenderNonZero is like Render but never collapses a populated slot's
// genuine zero price to empty; used where 0 is a valid level price
// distinguishable from "unused slot" by the caller's own bookkeeping.
// The core never produces this case (a resting order always has a
// nonzero price, see Book.Add), so Render is used throughout; this
// helper exists for completeness of the decimal boundary API.
func RenderNonZero(scaled uint64) string {
	return decimal.New(int64(scaled), -9).String()
}

// fastScaled implements the original source's integer-only fixed-point
// parse for the common case: digits, an optional dot, and up to 9
// fractional digits, with no sign and no exponent. It returns
// ok=false for anything else so the caller can fall back to the exact
// decimal parser.
func fastScaled(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	if s[0] == '-' {
		// Prices are never negative in this domain; reject rather
		// than silently taking the absolute value.
		return 0, false
	}
	dot := strings.IndexByte(s, '.')
	intPart := s
	fracPart := ""
	if dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	for i := 0; i < len(intPart); i++ {
		if intPart[i] < '0' || intPart[i] > '9' {
			return 0, false
		}
	}
	for i := 0; i < len(fracPart); i++ {
		if fracPart[i] < '0' || fracPart[i] > '9' {
			return 0, false
		}
	}
	if len(fracPart) > 9 {
		// More precision than the scale supports; let the exact
		// decimal path round it correctly instead of truncating.
		return 0, false
	}
	intVal, err := strconv.ParseUint(intPart, 10, 64)
	if err != nil {
		return 0, false
	}
	fracVal := uint64(0)
	if fracPart != "" {
		fracVal, err = strconv.ParseUint(fracPart, 10, 64)
		if err != nil {
			return 0, false
		}
	}
	pad := 9 - len(fracPart)
	for i := 0; i < pad; i++ {
		fracVal *= 10
	}
	return intVal*Scale + fracVal, true
}
