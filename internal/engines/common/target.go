package common

import (
	"sync"
	"sync/atomic"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// TargetStore holds the latest published TargetState. The decision worker is
// the only writer and the hotplug worker the only consumer. Publishing while
// the consumer is busy overwrites the previous target; only the most recent
// one is ever reconciled.
type TargetStore struct {
	mu        sync.Mutex
	state     core.TargetState
	published bool

	updates chan struct{}

	// wantOnline and inFlight are read by sampler callbacks, which must not
	// contend on mu with the hotplug worker.
	wantOnline atomic.Int64
	inFlight   atomic.Bool
}

// NewTargetStore creates an empty TargetStore.
func NewTargetStore() *TargetStore {
	return &TargetStore{
		updates: make(chan struct{}, 1),
	}
}

// Publish stores d as the new target and wakes the consumer.
func (s *TargetStore) Publish(d core.Decision) core.TargetState {
	s.mu.Lock()
	s.state = core.TargetState{
		Mask:       d.Mask,
		Slack:      d.Slack,
		Generation: s.state.Generation + 1,
	}
	s.published = true
	state := s.state
	s.mu.Unlock()

	s.wantOnline.Store(int64(d.Mask.Size()))
	select {
	case s.updates <- struct{}{}:
	default:
	}
	return state
}

// Latest returns the most recent target. The boolean is false until the first Publish.
func (s *TargetStore) Latest() (core.TargetState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.published
}

// Updates signals that a new target has been published since the last receive.
func (s *TargetStore) Updates() <-chan struct{} {
	return s.updates
}

// WantOnline returns the number of cores in the latest target mask, zero before the first Publish.
func (s *TargetStore) WantOnline() int {
	return int(s.wantOnline.Load())
}

// SetInFlight marks whether a reconciliation pass is running.
func (s *TargetStore) SetInFlight(v bool) {
	s.inFlight.Store(v)
}

// InFlight reports whether a reconciliation pass is running.
func (s *TargetStore) InFlight() bool {
	return s.inFlight.Load()
}
