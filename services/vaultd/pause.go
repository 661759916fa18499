package vaultd

import (
	"sort"
	"sync"
	"time"
)

// PauseRegistry tracks operator pauses per module. It satisfies the engine's
// pause view.
type PauseRegistry struct {
	mu      sync.RWMutex
	paused  map[string]time.Time
	metrics *Metrics
	clock   func() time.Time
}

// NewPauseRegistry creates an empty registry.
func NewPauseRegistry(metrics *Metrics, clock func() time.Time) *PauseRegistry {
	if clock == nil {
		clock = time.Now
	}
	return &PauseRegistry{paused: make(map[string]time.Time), metrics: metrics, clock: clock}
}

// IsPaused reports whether module currently rejects mutations.
func (p *PauseRegistry) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.paused[module]
	return ok
}

// Pause engages the guard for module.
func (p *PauseRegistry) Pause(module string) {
	p.mu.Lock()
	if _, ok := p.paused[module]; !ok {
		p.paused[module] = p.clock().UTC()
	}
	p.mu.Unlock()
	p.metrics.SetPaused(true)
}

// Resume releases the guard for module.
func (p *PauseRegistry) Resume(module string) {
	p.mu.Lock()
	delete(p.paused, module)
	remaining := len(p.paused)
	p.mu.Unlock()
	p.metrics.SetPaused(remaining > 0)
}

// PauseStatus describes one paused module.
type PauseStatus struct {
	Module string    `json:"module"`
	Since  time.Time `json:"since"`
}

// Snapshot lists paused modules in name order.
func (p *PauseRegistry) Snapshot() []PauseStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PauseStatus, 0, len(p.paused))
	for module, since := range p.paused {
		out = append(out, PauseStatus{Module: module, Since: since})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}
