package control

import (
	"sync"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// Manual returns operator-requested nudges. A nudge is consumed by the
// next Compute call; without one the coolant temperature is held.
type Manual struct {
	mu      sync.Mutex
	pending float64
}

func NewManual() *Manual {
	return &Manual{}
}

// Nudge queues a delta; repeated nudges accumulate until consumed.
func (m *Manual) Nudge(delta float64) {
	m.mu.Lock()
	m.pending += delta
	m.mu.Unlock()
}

func (m *Manual) Compute(ideal, measured dynamo.State) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.pending
	m.pending = 0
	return d
}
