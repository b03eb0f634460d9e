// Package memstats wraps runtime.ReadMemStats the way the original
// source's Utils::MemoryTracker wraps an OS-level RSS query: a cheap
// label-plus-log call site invoked at the same checkpoints as the
// progress reporter. No ecosystem library in the pack targets process
// memory introspection, so this stays on the standard library (see
// DESIGN.md).
package memstats

import (
	"runtime"

	"github.com/rs/zerolog"
)

// Log reads the current heap-in-use figure and emits one log line
// tagged with label.
func Log(logger zerolog.Logger, label string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info().
		Str("checkpoint", label).
		Uint64("heap_alloc_bytes", m.HeapAlloc).
		Uint64("heap_sys_bytes", m.HeapSys).
		Uint64("total_alloc_bytes", m.TotalAlloc).
		Msg("memory usage")
}

// HeapAllocBytes returns the current heap-in-use figure without
// logging, for callers that want to sample it programmatically (e.g.
// tests).
func HeapAllocBytes() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}
