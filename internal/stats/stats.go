// Package stats keeps per-process verification counters.
//
// The counters live only as long as the process: every instance of a
// multi-instance or serverless deployment reports its own numbers. Aggregate
// figures across instances need an external store.
package stats

import (
	"sync"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/router"
)

// #region snapshot

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Total            uint64             `json:"total"`
	Counts           map[string]uint64  `json:"counts"`
	Percentages      map[string]float64 `json:"percentages"`
	MeanProcessingMs float64            `json:"meanProcessingMs"`
	Since            time.Time          `json:"since"`
}

// #endregion snapshot

// #region aggregator

// Aggregator counts decisions and tracks mean processing time. Construct one
// per process and inject it; safe for concurrent use.
type Aggregator struct {
	mu     sync.RWMutex
	total  uint64
	counts map[router.Decision]uint64
	meanMs float64
	since  time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		counts: make(map[router.Decision]uint64),
		since:  time.Now().UTC(),
	}
}

// Record adds one completed verification. Non-terminal decisions are ignored.
func (a *Aggregator) Record(d router.Decision, elapsed time.Duration) {
	if !d.IsTerminal() {
		return
	}
	sample := float64(elapsed) / float64(time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	a.counts[d]++
	// incremental mean: no running sum to overflow
	a.meanMs += (sample - a.meanMs) / float64(a.total)
}

// Snapshot copies the current counters with per-decision percentages.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{
		Total:            a.total,
		Counts:           make(map[string]uint64, 4),
		Percentages:      make(map[string]float64, 4),
		MeanProcessingMs: a.meanMs,
		Since:            a.since,
	}
	for _, d := range router.Terminal() {
		n := a.counts[d]
		snap.Counts[d.String()] = n
		if a.total > 0 {
			snap.Percentages[d.String()] = 100 * float64(n) / float64(a.total)
		} else {
			snap.Percentages[d.String()] = 0
		}
	}
	return snap
}

// #endregion aggregator
