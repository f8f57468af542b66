package training

import (
	"gonum.org/v1/gonum/stat"
)

// RollingWindow keeps the full outcome history and answers trailing-window
// statistics over the last N evaluated outcomes.
type RollingWindow struct {
	size    int
	returns []float64
	hits    []float64 // 1 = hit, 0 = miss
}

// NewRollingWindow creates a window of the given size.
// size <= 0 means the whole history is used.
func NewRollingWindow(size int) *RollingWindow {
	return &RollingWindow{size: size}
}

// Add appends one evaluated outcome
func (w *RollingWindow) Add(realizedReturn float64, hit bool) {
	w.returns = append(w.returns, realizedReturn)
	h := 0.0
	if hit {
		h = 1.0
	}
	w.hits = append(w.hits, h)
}

// Len returns the number of outcomes seen so far
func (w *RollingWindow) Len() int {
	return len(w.returns)
}

// Stats returns the hit rate and mean return over the trailing
// min(size, Len()) outcomes. Both are nil while the history is empty.
func (w *RollingWindow) Stats() (hitRate, avgReturn *float64) {
	n := len(w.returns)
	if n == 0 {
		return nil, nil
	}

	k := n
	if w.size > 0 && w.size < n {
		k = w.size
	}

	hr := stat.Mean(w.hits[n-k:], nil)
	ar := stat.Mean(w.returns[n-k:], nil)
	return &hr, &ar
}
