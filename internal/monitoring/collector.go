// Package monitoring provides in-process decision counters surfaced by the
// stats endpoint.
package monitoring

import (
	"sync"
	"time"

	"github.com/patou-app/moderation-cli/internal/model"
)

// Stats is a point-in-time snapshot of the collector.
type Stats struct {
	Evaluations int64            `json:"evaluations"`
	Decisions   map[string]int64 `json:"decisions"`
	StartedAt   time.Time        `json:"started_at"`
	UptimeSecs  int64            `json:"uptime_seconds"`
}

// Collector counts decisions since process start. Safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	decisions map[model.Decision]int64
	total     int64
	startedAt time.Time
}

// NewCollector creates a Collector.
func NewCollector() *Collector {
	return &Collector{
		decisions: make(map[model.Decision]int64),
		startedAt: time.Now().UTC(),
	}
}

// RecordDecision counts one evaluation outcome.
func (c *Collector) RecordDecision(d model.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions[d]++
	c.total++
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	decisions := make(map[string]int64, len(c.decisions))
	for d, n := range c.decisions {
		decisions[string(d)] = n
	}
	return Stats{
		Evaluations: c.total,
		Decisions:   decisions,
		StartedAt:   c.startedAt,
		UptimeSecs:  int64(time.Since(c.startedAt).Seconds()),
	}
}
