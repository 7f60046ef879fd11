package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// EngineConfigSpec is the wire form of the engine tunables.
// On PUT, fields left out keep their current value.
type EngineConfigSpec struct {
	// PollInterval is the sampler period.
	// +optional
	PollInterval *metav1.Duration `json:"pollInterval,omitempty"`

	// Divisor is the run-queue bucket width. A sample is significant when its
	// depth falls in a different bucket than the last reported one.
	// +kubebuilder:validation:Minimum=1
	// +optional
	Divisor *uint32 `json:"divisor,omitempty"`

	// IOWaitThreshold is the iowait percentage above which a falling depth is
	// held. Zero disables the hold.
	// +kubebuilder:validation:Maximum=100
	// +optional
	IOWaitThreshold *uint32 `json:"iowaitThreshold,omitempty"`

	// MinDownInterval is the minimum spacing between two down transitions.
	// +optional
	MinDownInterval *metav1.Duration `json:"minDownInterval,omitempty"`

	// StartDelay suppresses forwarding of samples after the engine is enabled.
	// +optional
	StartDelay *metav1.Duration `json:"startDelay,omitempty"`
}

// EnabledRequest toggles the engine.
type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// DirectionLatency holds the latency counters of one transition direction.
type DirectionLatency struct {
	Count   uint64 `json:"count"`
	TotalMs uint64 `json:"totalMs"`
	MaxMs   uint64 `json:"maxMs"`
}

// LatencyStatus holds the transition latency counters since process start.
type LatencyStatus struct {
	Up   DirectionLatency `json:"up"`
	Down DirectionLatency `json:"down"`
}

// TargetStatus is the most recently published target.
type TargetStatus struct {
	// Mask is the target core set in cpu list format, e.g. "0-3,6".
	Mask       string          `json:"mask"`
	Slack      metav1.Duration `json:"slack"`
	Generation uint64          `json:"generation"`
}

// CoreStatus is the engine's view of one possible core.
type CoreStatus struct {
	ID     int  `json:"id"`
	Online bool `json:"online"`
	// +optional
	LastTransition *metav1.Time `json:"lastTransition,omitempty"`
}

// EngineStatus is the response of the status endpoint.
type EngineStatus struct {
	InstanceID string `json:"instanceID"`
	Enabled    bool   `json:"enabled"`
	// Oracle is the name of the policy backend.
	Oracle string `json:"oracle"`
	// Possible and Online are cpu lists.
	Possible string `json:"possible"`
	Online   string `json:"online"`
	// +optional
	Target  *TargetStatus    `json:"target,omitempty"`
	Cores   []CoreStatus     `json:"cores"`
	Config  EngineConfigSpec `json:"config"`
	Latency LatencyStatus    `json:"latency"`
}

// ErrorResponse is returned with every non-2xx admin response.
type ErrorResponse struct {
	Error string `json:"error"`
}
