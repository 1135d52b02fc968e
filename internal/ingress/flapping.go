package ingress

import (
	"sync"
	"time"

	"github.com/triageops/controlplane/internal/model"
)

// flappingWindow is the period over which status-transition cycles are
// counted; flappingThreshold is how many firing->resolved->firing cycles
// within the window mark an alert as flapping. Adapted from the teacher's
// internal/service/alert.go RecordStateTransition/CountFlappingCycles
// state machine.
const (
	flappingWindow    = 10 * time.Minute
	flappingThreshold = 3
)

type transition struct {
	status model.AlertStatus
	at     time.Time
}

// flappingTracker records recent status transitions per fingerprint.
type flappingTracker struct {
	mu           sync.Mutex
	transitions  map[string][]transition
	alreadyFlap  map[string]bool
}

func newFlappingTracker() *flappingTracker {
	return &flappingTracker{
		transitions: map[string][]transition{},
		alreadyFlap: map[string]bool{},
	}
}

// detectFlapping is called on (Dispatcher) so it shares the dispatcher's
// lifetime; the tracker is held in Dispatcher's flapping field.
func (d *Dispatcher) detectFlapping(fingerprint string, status model.AlertStatus) bool {
	d.flapping.mu.Lock()
	defer d.flapping.mu.Unlock()

	now := time.Now()
	hist := d.flapping.transitions[fingerprint]

	if len(hist) == 0 || hist[len(hist)-1].status != status {
		hist = append(hist, transition{status: status, at: now})
	}

	cutoff := now.Add(-flappingWindow)
	kept := hist[:0]
	for _, t := range hist {
		if t.at.After(cutoff) {
			kept = append(kept, t)
		}
	}
	d.flapping.transitions[fingerprint] = kept

	cycles := countCycles(kept)
	isFlapping := cycles >= flappingThreshold
	d.flapping.alreadyFlap[fingerprint] = isFlapping
	return isFlapping
}

// countCycles counts firing->resolved->firing transitions in order.
func countCycles(hist []transition) int {
	cycles := 0
	for i := 2; i < len(hist); i++ {
		if hist[i-2].status == model.AlertFiring &&
			hist[i-1].status == model.AlertResolved &&
			hist[i].status == model.AlertFiring {
			cycles++
		}
	}
	return cycles
}
