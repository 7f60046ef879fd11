package common

import (
	"sync"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/config"
)

// GlobalConfig guards the engine tunables. Readers get a copy, so a value
// read at the start of a sample or a pass stays fixed for its duration.
type GlobalConfig struct {
	mu  sync.RWMutex
	cfg config.EngineConfig
}

// NewGlobalConfig creates a GlobalConfig holding cfg. cfg is not validated.
func NewGlobalConfig(cfg config.EngineConfig) *GlobalConfig {
	return &GlobalConfig{cfg: cfg}
}

// Get returns a copy of the current tunables.
func (g *GlobalConfig) Get() config.EngineConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Update applies fn to a copy of the tunables and stores the result if it
// validates. On error the previous value is kept.
func (g *GlobalConfig) Update(fn func(*config.EngineConfig)) (config.EngineConfig, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	candidate := g.cfg
	fn(&candidate)
	if err := candidate.Validate(); err != nil {
		return g.cfg, err
	}
	g.cfg = candidate
	return candidate, nil
}
