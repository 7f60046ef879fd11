package actuator

import (
	"context"
	"errors"

	"k8s.io/utils/cpuset"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

var (
	// ErrPrimaryCore is returned for any attempt to take the primary core offline.
	ErrPrimaryCore = errors.New("the primary core cannot be taken offline")
	// ErrUnknownCore is returned for a core outside the possible set.
	ErrUnknownCore = errors.New("core is not possible on this host")
)

// TransitionProvider moves cores between online and offline.
// BringOnline and BringOffline block until the transition completed or failed.
type TransitionProvider interface {
	// Possible returns every core that can ever be online.
	Possible() cpuset.CPUSet
	// Online reads the current online set.
	Online() (cpuset.CPUSet, error)
	// OnlineCount returns the size of the last known online set without I/O.
	OnlineCount() int
	BringOnline(ctx context.Context, id core.CoreID) error
	// BringOffline fails with ErrPrimaryCore for core.PrimaryCore.
	BringOffline(ctx context.Context, id core.CoreID) error
}

// TransitionListener is notified after a core changed state.
type TransitionListener interface {
	CoreOnline(id core.CoreID)
	CoreOffline(id core.CoreID)
}

// TransitionObserver is told about every completed transition.
type TransitionObserver interface {
	ObserveTransition(ctx context.Context, t core.Transition) error
}

// TransitionMetrics is told about every transition attempt.
type TransitionMetrics interface {
	ObserveTransitionAttempt(t core.Transition, err error)
	ObserveDebounced()
	ObserveOutOfBand(online bool)
}
