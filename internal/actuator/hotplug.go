package actuator

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
	"k8s.io/utils/cpuset"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/common"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/latency"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/logging"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// HotplugConfig carries the collaborators of a HotplugWorker.
type HotplugConfig struct {
	Provider  TransitionProvider
	Targets   *common.TargetStore
	Table     *CoreTable
	Latency   latency.Recorder
	Config    *common.GlobalConfig
	Clock     clock.PassiveClock
	Listeners []TransitionListener
	Observers []TransitionObserver
	Metrics   TransitionMetrics
}

// HotplugWorker reconciles the online cores with the latest published target.
type HotplugWorker struct {
	provider  TransitionProvider
	targets   *common.TargetStore
	table     *CoreTable
	latency   latency.Recorder
	cfg       *common.GlobalConfig
	clock     clock.PassiveClock
	listeners []TransitionListener
	observers []TransitionObserver
	metrics   TransitionMetrics

	errorLogs rate.Sometimes
}

// PassResult summarizes one reconciliation pass.
type PassResult struct {
	// Onlined and Offlined hold the cores that changed state.
	Onlined  cpuset.CPUSet
	Offlined cpuset.CPUSet
	// Failed holds the cores whose transition failed.
	Failed cpuset.CPUSet
	// Debounced is set when a down transition was due but the minimum down interval had not elapsed.
	Debounced bool
}

// NewHotplugWorker creates a HotplugWorker.
func NewHotplugWorker(c HotplugConfig) *HotplugWorker {
	if c.Clock == nil {
		c.Clock = clock.RealClock{}
	}
	return &HotplugWorker{
		provider:  c.Provider,
		targets:   c.Targets,
		table:     c.Table,
		latency:   c.Latency,
		cfg:       c.Config,
		clock:     c.Clock,
		listeners: c.Listeners,
		observers: c.Observers,
		metrics:   c.Metrics,
		errorLogs: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Run reconciles every published target until ctx is done. A pass that has
// started runs to completion even if ctx is cancelled meanwhile.
func (w *HotplugWorker) Run(ctx context.Context) {
	logger := ctrl.LoggerFrom(ctx).WithName("hotplug")
	ctx = ctrl.LoggerInto(ctx, logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.targets.Updates():
		}
		if ctx.Err() != nil {
			return
		}

		target, ok := w.targets.Latest()
		if !ok {
			continue
		}
		w.Reconcile(context.WithoutCancel(ctx), target)
	}
}

// Reconcile runs a single pass towards target.
func (w *HotplugWorker) Reconcile(ctx context.Context, target core.TargetState) PassResult {
	logger := ctrl.LoggerFrom(ctx)

	w.targets.SetInFlight(true)
	defer w.targets.SetInFlight(false)

	res := PassResult{Onlined: cpuset.New(), Offlined: cpuset.New(), Failed: cpuset.New()}
	online := w.refresh(logger)
	mask := target.Mask.Union(cpuset.New(int(core.PrimaryCore)))

	// up: lowest missing core first, recomputed after every transition
	for {
		missing := mask.Difference(online).Difference(res.Failed)
		if missing.IsEmpty() {
			break
		}
		id := core.CoreID(missing.List()[0])
		if err := w.transition(ctx, id, true); err != nil {
			res.Failed = res.Failed.Union(cpuset.New(int(id)))
			continue
		}
		online = online.Union(cpuset.New(int(id)))
		res.Onlined = res.Onlined.Union(cpuset.New(int(id)))
	}

	// down: at most one per pass
	extra := online.Difference(mask).Difference(cpuset.New(int(core.PrimaryCore)))
	if !extra.IsEmpty() {
		id := core.CoreID(extra.List()[0])
		now := w.clock.Now()
		last := w.table.LastDown()
		if minDown := w.cfg.Get().MinDownInterval; !last.IsZero() && now.Sub(last) < minDown {
			res.Debounced = true
			if w.metrics != nil {
				w.metrics.ObserveDebounced()
			}
			logger.V(logging.DEBUG).Info("Down transition debounced",
				"core", id,
				"sinceLastDown", now.Sub(last),
				"minDownInterval", minDown)
		} else {
			w.table.SetLastDown(now)
			if err := w.transition(ctx, id, false); err != nil {
				res.Failed = res.Failed.Union(cpuset.New(int(id)))
			} else {
				res.Offlined = res.Offlined.Union(cpuset.New(int(id)))
			}
		}
	}

	logger.V(logging.DEBUG).Info("Reconciled target",
		"generation", target.Generation,
		"mask", mask.String(),
		"onlined", res.Onlined.String(),
		"offlined", res.Offlined.String(),
		"failed", res.Failed.String(),
		"debounced", res.Debounced)
	return res
}

// refresh reads the online set and adopts changes made outside the engine.
func (w *HotplugWorker) refresh(logger logr.Logger) cpuset.CPUSet {
	online, err := w.provider.Online()
	if err != nil {
		w.errorLogs.Do(func() {
			logger.Error(err, "Failed to read online cores, using the last known state")
		})
		return w.table.Desired()
	}

	desired := w.table.Desired()
	now := w.clock.Now()
	for _, id := range core.Cores(online.Difference(desired)) {
		w.adopt(logger, id, true, now)
	}
	for _, id := range core.Cores(desired.Intersection(w.provider.Possible()).Difference(online)) {
		w.adopt(logger, id, false, now)
	}
	return online
}

func (w *HotplugWorker) adopt(logger logr.Logger, id core.CoreID, online bool, now time.Time) {
	logger.Info("Core state changed outside the engine", "core", id, "online", online)
	w.table.Set(id, CoreRuntimeRecord{DesiredOnline: online, LastTransition: now})
	if w.metrics != nil {
		w.metrics.ObserveOutOfBand(online)
	}
	w.notifyListeners(id, online)
}

func (w *HotplugWorker) transition(ctx context.Context, id core.CoreID, online bool) error {
	logger := ctrl.LoggerFrom(ctx)

	start := w.clock.Now()
	var err error
	switch {
	case online:
		err = w.provider.BringOnline(ctx, id)
	case id == core.PrimaryCore:
		err = ErrPrimaryCore
	default:
		err = w.provider.BringOffline(ctx, id)
	}
	t := core.Transition{Core: id, Online: online, Elapsed: w.clock.Since(start)}
	if w.metrics != nil {
		w.metrics.ObserveTransitionAttempt(t, err)
	}
	if err != nil {
		w.errorLogs.Do(func() {
			logger.Error(err, "Core transition failed", "core", id, "direction", t.Direction())
		})
		return err
	}

	dir := latency.Down
	if online {
		dir = latency.Up
	}
	w.latency.Record(dir, t.Elapsed)
	w.table.Set(id, CoreRuntimeRecord{DesiredOnline: online, LastTransition: w.clock.Now()})
	w.notifyListeners(id, online)
	for _, obs := range w.observers {
		if err := obs.ObserveTransition(ctx, t); err != nil {
			logger.V(logging.DEBUG).Info("Transition observer failed", "core", id, "error", err.Error())
		}
	}

	logger.Info("Core transition", "core", id, "direction", t.Direction(), "elapsed", t.Elapsed)
	return nil
}

func (w *HotplugWorker) notifyListeners(id core.CoreID, online bool) {
	for _, l := range w.listeners {
		if online {
			l.CoreOnline(id)
		} else {
			l.CoreOffline(id)
		}
	}
}
