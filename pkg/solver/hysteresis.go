package solver

import (
	"time"

	"github.com/llm-d/llm-d-cpu-hotplug/pkg/config"
)

// Verdict is the outcome of one hysteresis step.
type Verdict int

const (
	Hold Verdict = iota
	Up
	Down
)

func (v Verdict) String() string {
	switch v {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "hold"
	}
}

// Hysteresis accumulates the time a threshold has been crossed.
type Hysteresis struct {
	table config.ThresholdTable
	held  time.Duration
}

// NewHysteresis creates a Hysteresis over table.
func NewHysteresis(table config.ThresholdTable) *Hysteresis {
	return &Hysteresis{table: table}
}

// Decide adds elapsed to the accumulated time and evaluates the thresholds of
// the current online level. Crossing neither threshold resets the accumulator,
// as does any Up or Down verdict.
func (h *Hysteresis) Decide(online, maxCores int, depth uint32, elapsed time.Duration) Verdict {
	if online <= 0 {
		h.held = 0
		return Hold
	}
	h.held += elapsed
	level := h.table.Level(online)

	verdict := Hold
	switch {
	case online < maxCores && depth >= level.UpDepth:
		if h.held >= level.UpHold {
			verdict = Up
		}
	case online > 1 && depth <= level.DownDepth:
		if h.held >= level.DownHold {
			verdict = Down
		}
	default:
		h.held = 0
	}

	if verdict != Hold {
		h.held = 0
	}
	return verdict
}

// Held returns the accumulated time.
func (h *Hysteresis) Held() time.Duration {
	return h.held
}

// Reset clears the accumulated time.
func (h *Hysteresis) Reset() {
	h.held = 0
}
