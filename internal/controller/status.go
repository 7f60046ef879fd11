package controller

import (
	"errors"
	"fmt"
	"sort"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/llm-d/llm-d-cpu-hotplug/api/v1alpha1"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/config"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/latency"
)

// Status assembles the admin status document.
func (e *Engine) Status() (v1alpha1.EngineStatus, error) {
	online, err := e.provider.Online()
	if err != nil {
		return v1alpha1.EngineStatus{}, fmt.Errorf("failed to read online cores: %w", err)
	}

	status := v1alpha1.EngineStatus{
		InstanceID: e.instanceID,
		Enabled:    e.Enabled(),
		Oracle:     e.oracleName,
		Possible:   e.provider.Possible().String(),
		Online:     online.String(),
		Config:     ConfigSpec(e.Config()),
		Latency:    LatencyStatus(e.Latency()),
	}

	target, err := e.Target()
	switch {
	case err == nil:
		status.Target = &v1alpha1.TargetStatus{
			Mask:       target.Mask.String(),
			Slack:      metav1.Duration{Duration: target.Slack},
			Generation: target.Generation,
		}
	case errors.Is(err, ErrEngineDisabled), errors.Is(err, ErrNoTarget):
	default:
		return v1alpha1.EngineStatus{}, err
	}

	for id, rec := range e.Cores() {
		cs := v1alpha1.CoreStatus{ID: int(id), Online: rec.DesiredOnline}
		if !rec.LastTransition.IsZero() {
			ts := metav1.NewTime(rec.LastTransition)
			cs.LastTransition = &ts
		}
		status.Cores = append(status.Cores, cs)
	}
	sort.Slice(status.Cores, func(i, j int) bool { return status.Cores[i].ID < status.Cores[j].ID })
	return status, nil
}

// ConfigSpec converts the tunables to their wire form with every field set.
func ConfigSpec(c config.EngineConfig) v1alpha1.EngineConfigSpec {
	return v1alpha1.EngineConfigSpec{
		PollInterval:    &metav1.Duration{Duration: c.PollInterval},
		Divisor:         &c.Divisor,
		IOWaitThreshold: &c.IOWaitThreshold,
		MinDownInterval: &metav1.Duration{Duration: c.MinDownInterval},
		StartDelay:      &metav1.Duration{Duration: c.StartDelay},
	}
}

// ApplyConfigSpec copies the fields set in spec onto c.
func ApplyConfigSpec(spec v1alpha1.EngineConfigSpec, c *config.EngineConfig) {
	if spec.PollInterval != nil {
		c.PollInterval = spec.PollInterval.Duration
	}
	if spec.Divisor != nil {
		c.Divisor = *spec.Divisor
	}
	if spec.IOWaitThreshold != nil {
		c.IOWaitThreshold = *spec.IOWaitThreshold
	}
	if spec.MinDownInterval != nil {
		c.MinDownInterval = spec.MinDownInterval.Duration
	}
	if spec.StartDelay != nil {
		c.StartDelay = spec.StartDelay.Duration
	}
}

// LatencyStatus converts a tracker snapshot to its wire form.
func LatencyStatus(s latency.Snapshot) v1alpha1.LatencyStatus {
	return v1alpha1.LatencyStatus{
		Up:   v1alpha1.DirectionLatency{Count: s.UpCount, TotalMs: s.UpTotalMs, MaxMs: s.UpMaxMs},
		Down: v1alpha1.DirectionLatency{Count: s.DownCount, TotalMs: s.DownTotalMs, MaxMs: s.DownMaxMs},
	}
}
