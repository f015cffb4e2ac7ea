// Package history keeps a bounded, time-ordered spot price history per
// symbol. The sampler task is the sole writer; reads take a consistent
// snapshot under the symbol's lock.
package history

import (
	"sync"

	"futsentry/internal/models"
)

// DefaultDepth is the per-symbol sample bound when none is configured.
const DefaultDepth = 5

type symbolHistory struct {
	mu      sync.Mutex
	samples []models.PriceSample
}

// Ring holds per-symbol bounded price histories. Histories are created
// lazily on the first successful sample and live for the process lifetime.
type Ring struct {
	mu      sync.Mutex
	depth   int
	symbols map[string]*symbolHistory
}

// New creates a ring with the given per-symbol depth bound.
func New(depth int) *Ring {
	if depth < 2 {
		depth = DefaultDepth
	}
	return &Ring{
		depth:   depth,
		symbols: make(map[string]*symbolHistory),
	}
}

func (r *Ring) forSymbol(symbol string) *symbolHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.symbols[symbol]
	if !ok {
		h = &symbolHistory{}
		r.symbols[symbol] = h
	}
	return h
}

// Append adds a sample to the symbol's history, trimming from the head while
// the length exceeds the depth bound. Samples older than the newest entry are
// dropped to keep the history time-ordered; the return value reports whether
// the sample was kept.
func (r *Ring) Append(symbol string, sample models.PriceSample) bool {
	h := r.forSymbol(symbol)
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.samples); n > 0 && sample.CapturedAt.Before(h.samples[n-1].CapturedAt) {
		return false
	}
	h.samples = append(h.samples, sample)
	for len(h.samples) > r.depth {
		h.samples = h.samples[1:]
	}
	return true
}

// LatestTwo returns the two most recent samples for symbol in (older, newer)
// order. ok is false when fewer than two samples exist.
func (r *Ring) LatestTwo(symbol string) (older, newer models.PriceSample, ok bool) {
	h := r.forSymbol(symbol)
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.samples)
	if n < 2 {
		return models.PriceSample{}, models.PriceSample{}, false
	}
	return h.samples[n-2], h.samples[n-1], true
}

// Len returns the current history length for symbol.
func (r *Ring) Len(symbol string) int {
	h := r.forSymbol(symbol)
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}
