package application

import (
	"sync"
	"time"

	"github.com/billaspace/anonxmusic/internal/ports"
)

type AFKStatus struct {
	Reason string
	Since  time.Time
}

// AFKTracker remembers which users marked themselves away. State is purely
// in-memory; it resets with the process.
type AFKTracker struct {
	clock ports.Clock

	mu   sync.RWMutex
	away map[int64]AFKStatus
}

func NewAFKTracker(clock ports.Clock) *AFKTracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &AFKTracker{clock: clock, away: make(map[int64]AFKStatus)}
}

func (t *AFKTracker) Set(userID int64, reason string) {
	t.mu.Lock()
	t.away[userID] = AFKStatus{Reason: reason, Since: t.clock.Now()}
	t.mu.Unlock()
}

// Clear removes the user's away mark and reports how long they were gone.
func (t *AFKTracker) Clear(userID int64) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.away[userID]
	if !ok {
		return 0, false
	}
	delete(t.away, userID)
	return t.clock.Now().Sub(status.Since), true
}

func (t *AFKTracker) Lookup(userID int64) (AFKStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.away[userID]
	return status, ok
}
