package optimizer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
	"k8s.io/utils/cpuset"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/common"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/oracle"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/logging"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

// DecisionObserver is told about every oracle call.
type DecisionObserver interface {
	ObserveDecision(event core.Event, elapsed time.Duration, err error)
}

// DecisionWorker drains the mailbox and turns requests into published targets.
type DecisionWorker struct {
	mailbox  *Mailbox
	oracle   oracle.Oracle
	targets  *common.TargetStore
	slack    *SlackTimer
	possible cpuset.CPUSet
	clock    clock.PassiveClock
	observer DecisionObserver

	failures  int
	errorLogs rate.Sometimes
}

// NewDecisionWorker creates a DecisionWorker. Masks returned by o are
// restricted to possible and always include the primary core.
func NewDecisionWorker(mb *Mailbox, o oracle.Oracle, targets *common.TargetStore, slack *SlackTimer, possible cpuset.CPUSet) *DecisionWorker {
	return &DecisionWorker{
		mailbox:   mb,
		oracle:    o,
		targets:   targets,
		slack:     slack,
		possible:  possible,
		clock:     clock.RealClock{},
		errorLogs: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// WithClock replaces the clock used to time oracle calls.
func (w *DecisionWorker) WithClock(clk clock.PassiveClock) *DecisionWorker {
	w.clock = clk
	return w
}

// WithObserver registers an observer for oracle calls.
func (w *DecisionWorker) WithObserver(obs DecisionObserver) *DecisionWorker {
	w.observer = obs
	return w
}

// Run processes requests until ctx is done. A request is never started after
// ctx is done, but one that is running completes.
func (w *DecisionWorker) Run(ctx context.Context) {
	logger := ctrl.LoggerFrom(ctx).WithName("decision")
	ctx = ctrl.LoggerInto(ctx, logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.mailbox.Wake():
		}
		if ctx.Err() != nil {
			return
		}

		req, ok := w.mailbox.Take()
		if !ok {
			continue
		}
		w.process(ctx, req)
	}
}

func (w *DecisionWorker) process(ctx context.Context, req core.Request) {
	logger := ctrl.LoggerFrom(ctx)

	start := w.clock.Now()
	decision, err := w.oracle.Evaluate(ctx, req.Event, req.Value())
	elapsed := w.clock.Since(start)
	if w.observer != nil {
		w.observer.ObserveDecision(req.Event, elapsed, err)
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.failures++
		w.errorLogs.Do(func() {
			logger.Error(err, "Oracle call failed, keeping the last target",
				"event", req.Event.String(),
				"value", req.Value(),
				"consecutiveFailures", w.failures)
		})
		return
	}
	if w.failures > 0 {
		logger.Info("Oracle recovered", "failedCalls", w.failures)
		w.failures = 0
	}

	decision.Mask = core.NormalizeMask(decision.Mask, w.possible)
	state := w.targets.Publish(decision)
	if decision.Slack > 0 {
		w.slack.Arm(decision.Slack)
	}

	logger.V(logging.DEBUG).Info("Published target",
		"event", req.Event.String(),
		"value", req.Value(),
		"mask", state.Mask.String(),
		"slack", state.Slack,
		"generation", state.Generation,
		"oracleLatency", elapsed)
}
