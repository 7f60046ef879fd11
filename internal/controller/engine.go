/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/actuator"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/collector"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/config"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/common"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/engines/oracle"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/latency"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/metrics"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/optimizer"
	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

var (
	// ErrEngineDisabled is returned for operations that need a running pipeline.
	ErrEngineDisabled = errors.New("engine is disabled")
	// ErrNoTarget is returned before the first target was published.
	ErrNoTarget = errors.New("no target published yet")
)

// EngineOptions carries the collaborators of an Engine.
type EngineOptions struct {
	InstanceID string
	Provider   actuator.TransitionProvider
	Oracle     oracle.Oracle
	// OracleName is reported in the status.
	OracleName string
	Source     collector.LoadSource
	Config     config.EngineConfig
	// Enabled makes Start enable the engine right away.
	Enabled bool
	// Metrics is optional.
	Metrics *metrics.Emitter
	Clock   clock.WithDelayedExecution
}

// pipeline is everything that is rebuilt on every enable.
type pipeline struct {
	mailbox *optimizer.Mailbox
	slack   *optimizer.SlackTimer
	targets *common.TargetStore
	sampler *collector.Sampler
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Engine is the hotplug engine. It implements manager.Runnable.
type Engine struct {
	instanceID string
	provider   actuator.TransitionProvider
	oracle     oracle.Oracle
	oracleName string
	source     collector.LoadSource
	metrics    *metrics.Emitter
	clock      clock.WithDelayedExecution
	log        logr.Logger

	cfg     *common.GlobalConfig
	table   *actuator.CoreTable
	latency *latency.Tracker

	startEnabled bool

	mu  sync.Mutex
	run *pipeline
}

var _ manager.Runnable = (*Engine)(nil)

// NewEngine validates opts and creates a disabled Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Provider == nil || opts.Oracle == nil || opts.Source == nil {
		return nil, errors.New("engine needs a provider, an oracle and a load source")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	online, err := opts.Provider.Online()
	if err != nil {
		return nil, fmt.Errorf("failed to read online cores: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	return &Engine{
		instanceID:   opts.InstanceID,
		provider:     opts.Provider,
		oracle:       opts.Oracle,
		oracleName:   opts.OracleName,
		source:       opts.Source,
		metrics:      opts.Metrics,
		clock:        opts.Clock,
		log:          ctrl.Log.WithName("engine").WithValues("instance", opts.InstanceID),
		cfg:          common.NewGlobalConfig(opts.Config),
		table:        actuator.NewCoreTable(opts.Provider.Possible(), online),
		latency:      latency.NewTracker(),
		startEnabled: opts.Enabled,
	}, nil
}

// Start enables the engine if requested, blocks until ctx is done and then
// disables it.
func (e *Engine) Start(ctx context.Context) error {
	if e.startEnabled {
		if err := e.SetEnabled(ctx, true); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return e.SetEnabled(context.WithoutCancel(ctx), false)
}

// SetEnabled starts or stops the pipeline. Setting the current state again is a no-op.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case enabled && e.run == nil:
		return e.enableLocked(ctx)
	case !enabled && e.run != nil:
		e.disableLocked(ctx)
	}
	return nil
}

// Enabled reports whether the pipeline is running.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

func (e *Engine) enableLocked(ctx context.Context) error {
	online, err := e.provider.Online()
	if err != nil {
		return fmt.Errorf("failed to read online cores: %w", err)
	}
	if s, ok := e.oracle.(oracle.OnlineSyncer); ok {
		s.SyncOnline(online)
	}
	if o, ok := e.oracle.(oracle.EnableObserver); ok {
		if err := o.ObserveEnable(ctx, true); err != nil {
			e.log.Error(err, "Oracle did not accept the enable notification")
		}
	}

	p := &pipeline{
		mailbox: optimizer.NewMailbox(),
		targets: common.NewTargetStore(),
	}
	p.slack = optimizer.NewSlackTimer(e.clock, p.mailbox)

	samplerCfg := collector.SamplerConfig{
		Clock:    e.clock,
		Mailbox:  p.mailbox,
		Slack:    p.slack,
		Source:   e.source,
		Config:   e.cfg,
		Targets:  p.targets,
		Online:   e.provider,
		Possible: e.provider.Possible(),
		Logger:   e.log.WithName("sampler"),
	}
	decision := optimizer.NewDecisionWorker(p.mailbox, e.oracle, p.targets, p.slack, e.provider.Possible()).
		WithClock(e.clock)
	hotplugCfg := actuator.HotplugConfig{
		Provider: e.provider,
		Targets:  p.targets,
		Table:    e.table,
		Latency:  e.latency,
		Config:   e.cfg,
		Clock:    e.clock,
	}
	if e.metrics != nil {
		samplerCfg.Observer = e.metrics
		decision.WithObserver(e.metrics)
		hotplugCfg.Metrics = e.metrics
		e.metrics.SetEnabled(true)
	}
	if o, ok := e.oracle.(oracle.TransitionObserver); ok {
		hotplugCfg.Observers = append(hotplugCfg.Observers, o)
	}
	p.sampler = collector.NewSampler(samplerCfg)
	hotplugCfg.Listeners = []actuator.TransitionListener{p.sampler}
	hotplug := actuator.NewHotplugWorker(hotplugCfg)

	runCtx, cancel := context.WithCancel(ctrl.LoggerInto(context.Background(), e.log))
	p.cancel = cancel
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		decision.Run(runCtx)
	}()
	go func() {
		defer p.wg.Done()
		hotplug.Run(runCtx)
	}()
	p.sampler.Start(online)

	e.run = p
	e.log.Info("Engine enabled", "online", online.String(), "config", e.cfg.Get())
	return nil
}

func (e *Engine) disableLocked(ctx context.Context) {
	p := e.run
	p.sampler.Stop()
	p.cancel()
	p.wg.Wait()
	p.slack.Cancel()
	e.run = nil

	if e.metrics != nil {
		e.metrics.SetEnabled(false)
	}
	if o, ok := e.oracle.(oracle.EnableObserver); ok {
		if err := o.ObserveEnable(ctx, false); err != nil {
			e.log.Error(err, "Oracle did not accept the disable notification")
		}
	}
	e.log.Info("Engine disabled")
}

// Config returns the current tunables.
func (e *Engine) Config() config.EngineConfig {
	return e.cfg.Get()
}

// UpdateConfig applies fn to the tunables. The change is rejected as a whole
// if the result does not validate.
func (e *Engine) UpdateConfig(fn func(*config.EngineConfig)) (config.EngineConfig, error) {
	cfg, err := e.cfg.Update(fn)
	if err != nil {
		return cfg, err
	}
	e.log.Info("Configuration updated", "config", cfg)
	return cfg, nil
}

// SetPollInterval sets the sampler period.
func (e *Engine) SetPollInterval(d time.Duration) error {
	_, err := e.UpdateConfig(func(c *config.EngineConfig) { c.PollInterval = d })
	return err
}

// SetDivisor sets the run-queue bucket width.
func (e *Engine) SetDivisor(v uint32) error {
	_, err := e.UpdateConfig(func(c *config.EngineConfig) { c.Divisor = v })
	return err
}

// SetIOWaitThreshold sets the iowait hold threshold in percent.
func (e *Engine) SetIOWaitThreshold(v uint32) error {
	_, err := e.UpdateConfig(func(c *config.EngineConfig) { c.IOWaitThreshold = v })
	return err
}

// SetMinDownInterval sets the minimum spacing of down transitions.
func (e *Engine) SetMinDownInterval(d time.Duration) error {
	_, err := e.UpdateConfig(func(c *config.EngineConfig) { c.MinDownInterval = d })
	return err
}

// SetStartDelay sets the start delay applied on the next enable.
func (e *Engine) SetStartDelay(d time.Duration) error {
	_, err := e.UpdateConfig(func(c *config.EngineConfig) { c.StartDelay = d })
	return err
}

// Latency returns the transition latency counters.
func (e *Engine) Latency() latency.Snapshot {
	return e.latency.Snapshot()
}

// Target returns the latest published target.
func (e *Engine) Target() (core.TargetState, error) {
	e.mu.Lock()
	p := e.run
	e.mu.Unlock()
	if p == nil {
		return core.TargetState{}, ErrEngineDisabled
	}
	t, ok := p.targets.Latest()
	if !ok {
		return core.TargetState{}, ErrNoTarget
	}
	return t, nil
}

// Cores returns the engine's record of every possible core.
func (e *Engine) Cores() map[core.CoreID]actuator.CoreRuntimeRecord {
	return e.table.Snapshot()
}

// OnlineCount returns the number of online cores without I/O.
func (e *Engine) OnlineCount() int {
	return e.provider.OnlineCount()
}

// PossibleCount returns the number of possible cores.
func (e *Engine) PossibleCount() int {
	return e.provider.Possible().Size()
}

// LatencyReader exposes the latency tracker to the metrics collectors.
func (e *Engine) LatencyReader() latency.Reader {
	return e.latency
}
