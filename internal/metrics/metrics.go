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

package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/core"
)

const (
	promNamespace = "hotplugd"

	decisionSubsystem   = "decision"
	samplerSubsystem    = "sampler"
	transitionSubsystem = "transition"
	engineSubsystem     = "engine"

	labelInstance  = "instance"
	labelEvent     = "event"
	labelResult    = "result"
	labelDirection = "direction"
	labelForwarded = "forwarded"

	resultSuccess = "success"
	resultError   = "error"
)

// Emitter publishes the engine's activity as prometheus metrics.
// Every series carries the instance label of the daemon.
type Emitter struct {
	instance string

	decisions        *prom.CounterVec
	decisionDuration *prom.HistogramVec
	samples          *prom.CounterVec
	depth            *prom.GaugeVec
	transitions      *prom.CounterVec
	debounced        *prom.CounterVec
	outOfBand        *prom.CounterVec
	enabled          *prom.GaugeVec
}

// NewEmitter creates an Emitter and registers its metrics with reg.
func NewEmitter(reg prom.Registerer, instance string) (*Emitter, error) {
	e := &Emitter{
		instance: instance,
		decisions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: promNamespace,
			Subsystem: decisionSubsystem,
			Name:      "requests_total",
			Help:      "Oracle calls by event and result",
		}, []string{labelInstance, labelEvent, labelResult}),
		decisionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: promNamespace,
			Subsystem: decisionSubsystem,
			Name:      "duration_seconds",
			Help:      "Latency of oracle calls",
			Buckets:   prom.ExponentialBuckets(0.0001, 4, 8),
		}, []string{labelInstance}),
		samples: prom.NewCounterVec(prom.CounterOpts{
			Namespace: promNamespace,
			Subsystem: samplerSubsystem,
			Name:      "samples_total",
			Help:      "Load samples taken, split by whether they were forwarded to the oracle",
		}, []string{labelInstance, labelForwarded}),
		depth: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: promNamespace,
			Subsystem: samplerSubsystem,
			Name:      "run_queue_depth",
			Help:      "Last sampled run-queue depth in units of 1/100 runnable task",
		}, []string{labelInstance}),
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: promNamespace,
			Subsystem: transitionSubsystem,
			Name:      "attempts_total",
			Help:      "Core transition attempts by direction and result",
		}, []string{labelInstance, labelDirection, labelResult}),
		debounced: prom.NewCounterVec(prom.CounterOpts{
			Namespace: promNamespace,
			Subsystem: transitionSubsystem,
			Name:      "debounced_total",
			Help:      "Down transitions postponed by the minimum down interval",
		}, []string{labelInstance}),
		outOfBand: prom.NewCounterVec(prom.CounterOpts{
			Namespace: promNamespace,
			Subsystem: transitionSubsystem,
			Name:      "out_of_band_total",
			Help:      "Core state changes made outside the engine",
		}, []string{labelInstance, labelDirection}),
		enabled: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: promNamespace,
			Subsystem: engineSubsystem,
			Name:      "enabled",
			Help:      "1 while the engine is enabled",
		}, []string{labelInstance}),
	}

	for _, c := range []prom.Collector{
		e.decisions, e.decisionDuration, e.samples, e.depth,
		e.transitions, e.debounced, e.outOfBand, e.enabled,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ObserveDecision records one oracle call.
func (e *Emitter) ObserveDecision(event core.Event, elapsed time.Duration, err error) {
	e.decisions.WithLabelValues(e.instance, event.String(), result(err)).Inc()
	e.decisionDuration.WithLabelValues(e.instance).Observe(elapsed.Seconds())
}

// ObserveSample records one load sample.
func (e *Emitter) ObserveSample(depth uint32, forwarded bool) {
	label := "false"
	if forwarded {
		label = "true"
	}
	e.samples.WithLabelValues(e.instance, label).Inc()
	e.depth.WithLabelValues(e.instance).Set(float64(depth))
}

// ObserveTransitionAttempt records one call into the transition provider.
func (e *Emitter) ObserveTransitionAttempt(t core.Transition, err error) {
	e.transitions.WithLabelValues(e.instance, t.Direction(), result(err)).Inc()
}

// ObserveDebounced records a postponed down transition.
func (e *Emitter) ObserveDebounced() {
	e.debounced.WithLabelValues(e.instance).Inc()
}

// ObserveOutOfBand records a core state change made outside the engine.
func (e *Emitter) ObserveOutOfBand(online bool) {
	e.outOfBand.WithLabelValues(e.instance, core.Transition{Online: online}.Direction()).Inc()
}

// SetEnabled records the engine toggle.
func (e *Emitter) SetEnabled(enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	e.enabled.WithLabelValues(e.instance).Set(v)
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
