package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doctrack/doctrack/internal/clock"
	"github.com/doctrack/doctrack/internal/document"
)

// sweepEvery bounds how often Allow drops keys whose timestamps all expired.
const sweepEvery = 1024

type window struct {
	size time.Duration
	hits []time.Time
}

// Memory keeps admission timestamps in process memory. State is not shared
// between processes.
type Memory struct {
	clock clock.Clock

	mu      sync.Mutex
	windows map[string]*window
	checks  int
}

func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Memory{clock: clk, windows: make(map[string]*window)}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Allow(_ context.Context, scope Scope, client string) error {
	if scope.Limit <= 0 {
		return nil
	}
	now := m.clock.Now()
	size := scope.window()
	k := key(scope, client)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks++
	if m.checks%sweepEvery == 0 {
		m.sweep(now)
	}

	w, ok := m.windows[k]
	if !ok {
		w = &window{}
		m.windows[k] = w
	}
	w.size = size
	w.hits = prune(w.hits, now.Add(-size))
	if len(w.hits) >= scope.Limit {
		return fmt.Errorf("%w: %d requests per %s for %s", document.ErrRateLimited, scope.Limit, size, scope.Name)
	}
	w.hits = append(w.hits, now)
	return nil
}

// prune drops timestamps strictly before cutoff; a hit exactly one window
// old still counts.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	return ts[i:]
}

func (m *Memory) sweep(now time.Time) {
	for k, w := range m.windows {
		if len(w.hits) == 0 || w.hits[len(w.hits)-1].Before(now.Add(-w.size)) {
			delete(m.windows, k)
		}
	}
}
