// Package iqcorrect implements I/Q imbalance correction (spec.md §4.5 step
// 3): the atomic double-buffered IqFactors pair, and applying a factor pair
// to a block of samples. The hill-climb estimator that produces new factors
// lives in sibling package dsp/iqopt.
package iqcorrect

import (
	"sync"
	"sync/atomic"
)

// Factors is the pair {mag_adj, phase_adj} (spec.md §3).
type Factors struct {
	Mag   float32
	Phase float32
}

// AtomicFactors is the "atomic-index double-buffer for IqFactors" design
// note (spec.md §9): a two-element array with an atomic active index, so
// readers observe an atomically-consistent pair without taking a lock,
// while a single writer (the I/Q optimizer) mutates only the inactive slot.
// This is a seqlock-style wait-free read of a value pair without needing an
// atomic-pair primitive — keep it exactly, per spec.md §9.
type AtomicFactors struct {
	mu     sync.Mutex // iq_factors_mutex: held only by the writer while flipping
	slots  [2]Factors
	active atomic.Uint32
}

// Load returns the currently active factor pair. Safe for concurrent use by
// any number of readers without taking iq_factors_mutex.
func (a *AtomicFactors) Load() Factors {
	idx := a.active.Load()
	return a.slots[idx]
}

// Publish writes f into the inactive slot and then atomically flips the
// active index, making it visible to readers. Called only by the I/Q
// optimizer (spec.md §4.10 step 5).
func (a *AtomicFactors) Publish(f Factors) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.active.Load()
	next := 1 - cur
	a.slots[next] = f
	a.active.Store(next)
}
