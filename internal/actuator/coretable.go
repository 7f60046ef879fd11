package actuator

import (
	"maps"
	"sync"
	"time"

	"k8s.io/utils/cpuset"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// CoreRuntimeRecord is the engine's view of one possible core.
type CoreRuntimeRecord struct {
	// DesiredOnline is the state the engine last applied or adopted.
	DesiredOnline bool
	// LastTransition is when DesiredOnline last changed. Zero if it never did.
	LastTransition time.Time
}

// CoreTable holds a CoreRuntimeRecord for every possible core. It lives for
// the whole process so the down debounce survives enable and disable. The
// hotplug worker is the only writer.
type CoreTable struct {
	mu       sync.RWMutex
	records  map[core.CoreID]CoreRuntimeRecord
	lastDown time.Time
}

// NewCoreTable creates a table for possible with the cores in online marked online.
func NewCoreTable(possible, online cpuset.CPUSet) *CoreTable {
	records := make(map[core.CoreID]CoreRuntimeRecord, possible.Size())
	for _, id := range core.Cores(possible) {
		records[id] = CoreRuntimeRecord{DesiredOnline: online.Contains(int(id))}
	}
	return &CoreTable{records: records}
}

// Get returns the record of id.
func (t *CoreTable) Get(id core.CoreID) (CoreRuntimeRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

// Set replaces the record of id. Cores outside the possible set are ignored.
func (t *CoreTable) Set(id core.CoreID, rec CoreRuntimeRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[id]; ok {
		t.records[id] = rec
	}
}

// Snapshot returns a copy of every record.
func (t *CoreTable) Snapshot() map[core.CoreID]CoreRuntimeRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.records)
}

// Desired returns the cores whose record is online.
func (t *CoreTable) Desired() cpuset.CPUSet {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]int, 0, len(t.records))
	for id, rec := range t.records {
		if rec.DesiredOnline {
			ids = append(ids, int(id))
		}
	}
	return cpuset.New(ids...)
}

// LastDown returns the time of the last down attempt.
func (t *CoreTable) LastDown() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastDown
}

// SetLastDown records a down attempt at ts.
func (t *CoreTable) SetLastDown(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastDown = ts
}
