package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"k8s.io/utils/clock"
	"k8s.io/utils/cpuset"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/config"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// Oracle maps a load event to a target core mask and a slack interval.
// Implementations may block and are called outside every engine lock.
type Oracle interface {
	// Evaluate returns the cores that should be online. value is the run-queue
	// depth for EventRunQueueUpdate and zero for EventSlackExpired.
	Evaluate(ctx context.Context, event core.Event, value uint32) (core.Decision, error)
}

// TransitionObserver is implemented by oracles that want to hear about every
// completed core transition.
type TransitionObserver interface {
	ObserveTransition(ctx context.Context, t core.Transition) error
}

// EnableObserver is implemented by oracles that track the engine toggle.
type EnableObserver interface {
	ObserveEnable(ctx context.Context, enabled bool) error
}

// OnlineSyncer is implemented by oracles that keep their own view of the
// online cores and need it replaced when the engine is enabled.
type OnlineSyncer interface {
	SyncOnline(online cpuset.CPUSet)
}

// Strategy is an enumeration of the oracle backends
type Strategy int

// enumeration of Strategy
const (
	ThresholdStrategy Strategy = iota
	RemoteStrategy
)

// ErrUnknownStrategy is returned for a strategy name or value without a backend.
var ErrUnknownStrategy = errors.New("unsupported oracle strategy")

func (s Strategy) String() string {
	switch s {
	case ThresholdStrategy:
		return "threshold"
	case RemoteStrategy:
		return "remote"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps a strategy name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "threshold":
		return ThresholdStrategy, nil
	case "remote":
		return RemoteStrategy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Config carries the settings of every backend. Each backend reads only its own fields.
type Config struct {
	// Threshold backend
	Table    config.ThresholdTable
	Possible cpuset.CPUSet
	Online   cpuset.CPUSet
	Clock    clock.PassiveClock

	// Remote backend
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewOracle is a factory that creates a new Oracle based on the provided strategy
func NewOracle(strategy Strategy, cfg Config) (Oracle, error) {
	switch strategy {
	case ThresholdStrategy:
		return NewThresholdOracle(cfg.Table, cfg.Possible, cfg.Online, cfg.Clock)
	case RemoteStrategy:
		return NewRemoteOracle(cfg.URL, cfg.Timeout, cfg.Client)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, strategy)
	}
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, event core.Event, value uint32) (core.Decision, error)

// Evaluate implements Oracle.
func (f Func) Evaluate(ctx context.Context, event core.Event, value uint32) (core.Decision, error) {
	return f(ctx, event, value)
}
