package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"
	"k8s.io/utils/cpuset"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/logging"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/config"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/solver"
)

// ThresholdOracle decides locally from a threshold table. It moves its target
// by at most one core per evaluation and returns the table interval as slack,
// so a steady load keeps being re-evaluated until its hold time is reached.
//
// The level is chosen from the size of the target, not from the cores that
// happen to be online, since transitions are applied asynchronously. The
// target only grows once every core it already holds has been seen online, so
// a core that fails to come up caps the target instead of running ahead of it.
type ThresholdOracle struct {
	mu       sync.Mutex
	clock    clock.PassiveClock
	table    config.ThresholdTable
	hyst     *solver.Hysteresis
	possible cpuset.CPUSet
	target   cpuset.CPUSet
	online   cpuset.CPUSet

	depth    uint32
	last     time.Time
	observed bool
}

var (
	_ Oracle             = (*ThresholdOracle)(nil)
	_ TransitionObserver = (*ThresholdOracle)(nil)
	_ EnableObserver     = (*ThresholdOracle)(nil)
	_ OnlineSyncer       = (*ThresholdOracle)(nil)
)

// NewThresholdOracle creates a ThresholdOracle whose initial target is online.
func NewThresholdOracle(table config.ThresholdTable, possible, online cpuset.CPUSet, clk clock.PassiveClock) (*ThresholdOracle, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid threshold table: %w", err)
	}
	if !possible.Contains(int(core.PrimaryCore)) {
		return nil, fmt.Errorf("possible cores %q do not include the primary core", possible.String())
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	online = core.NormalizeMask(online, possible)
	return &ThresholdOracle{
		clock:    clk,
		table:    table,
		hyst:     solver.NewHysteresis(table),
		possible: possible,
		target:   online,
		online:   online,
	}, nil
}

// Evaluate implements Oracle. A slack expiry re-evaluates the last known depth.
func (o *ThresholdOracle) Evaluate(ctx context.Context, event core.Event, value uint32) (core.Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock.Now()
	var elapsed time.Duration
	if o.observed {
		elapsed = now.Sub(o.last)
	}
	o.last = now
	o.observed = true

	switch event {
	case core.EventRunQueueUpdate:
		o.depth = value
	case core.EventSlackExpired:
	default:
		return core.Decision{}, fmt.Errorf("unexpected event %s", event)
	}

	mask := o.target
	verdict := o.hyst.Decide(mask.Size(), o.possible.Size(), o.depth, elapsed)
	pending := !mask.IsSubsetOf(o.online)
	switch verdict {
	case solver.Up:
		if pending {
			break
		}
		if missing := o.possible.Difference(mask).List(); len(missing) > 0 {
			mask = mask.Union(cpuset.New(missing[0]))
		}
	case solver.Down:
		if ids := mask.Difference(cpuset.New(int(core.PrimaryCore))).List(); len(ids) > 0 {
			mask = mask.Difference(cpuset.New(ids[len(ids)-1]))
		}
	}

	o.target = mask

	ctrl.LoggerFrom(ctx).V(logging.DEBUG).Info("Threshold decision",
		"event", event.String(),
		"depth", o.depth,
		"online", o.online.String(),
		"verdict", verdict.String(),
		"pending", pending,
		"mask", mask.String())

	return core.Decision{Mask: mask, Slack: o.table.Interval}, nil
}

// ObserveTransition implements TransitionObserver. It updates the online view
// that gates growth of the target; a failed transition leaves the target in
// place so it is retried.
func (o *ThresholdOracle) ObserveTransition(_ context.Context, t core.Transition) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t.Online {
		o.online = o.online.Union(cpuset.New(int(t.Core)))
	} else {
		o.online = o.online.Difference(cpuset.New(int(t.Core)))
	}
	return nil
}

// ObserveEnable implements EnableObserver. Re-enabling starts a fresh hold window.
func (o *ThresholdOracle) ObserveEnable(_ context.Context, enabled bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if enabled {
		o.hyst.Reset()
		o.observed = false
	}
	return nil
}

// SyncOnline implements OnlineSyncer. The target restarts from online.
func (o *ThresholdOracle) SyncOnline(online cpuset.CPUSet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.online = core.NormalizeMask(online, o.possible)
	o.target = o.online
}
