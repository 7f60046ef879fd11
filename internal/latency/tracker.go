package latency

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the latency counters. Totals and maxima
// are in milliseconds.
type Snapshot struct {
	UpCount     uint64
	UpTotalMs   uint64
	UpMaxMs     uint64
	DownCount   uint64
	DownTotalMs uint64
	DownMaxMs   uint64
}

// Count returns the number of transitions in dir.
func (s Snapshot) Count(dir Direction) uint64 {
	if dir == Up {
		return s.UpCount
	}
	return s.DownCount
}

// TotalMs returns the accumulated milliseconds in dir.
func (s Snapshot) TotalMs(dir Direction) uint64 {
	if dir == Up {
		return s.UpTotalMs
	}
	return s.DownTotalMs
}

// MaxMs returns the slowest transition in dir.
func (s Snapshot) MaxMs(dir Direction) uint64 {
	if dir == Up {
		return s.UpMaxMs
	}
	return s.DownMaxMs
}

// Tracker is the lock-protected implementation of ReadRecorder.
// Counters only ever grow.
type Tracker struct {
	mu    sync.RWMutex
	stats Snapshot
}

var _ ReadRecorder = (*Tracker)(nil)

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record implements Recorder.
func (t *Tracker) Record(dir Direction, elapsed time.Duration) {
	ms := uint64(max(elapsed, 0) / time.Millisecond)

	t.mu.Lock()
	defer t.mu.Unlock()
	switch dir {
	case Up:
		t.stats.UpCount++
		t.stats.UpTotalMs += ms
		t.stats.UpMaxMs = max(t.stats.UpMaxMs, ms)
	case Down:
		t.stats.DownCount++
		t.stats.DownTotalMs += ms
		t.stats.DownMaxMs = max(t.stats.DownMaxMs, ms)
	}
}

// Snapshot implements Reader.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}
