package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAFKTrackerSetLookupClear(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker := NewAFKTracker(fixedClock{now: start})

	tracker.Set(42, "lunch")

	status, ok := tracker.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, "lunch", status.Reason)
	assert.Equal(t, start, status.Since)

	_, ok = tracker.Lookup(43)
	assert.False(t, ok)
}

func TestAFKTrackerClearReportsDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker := NewAFKTracker(fixedClock{now: start})
	tracker.Set(42, "")

	tracker.clock = fixedClock{now: start.Add(90 * time.Minute)}

	gone, ok := tracker.Clear(42)
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, gone)

	_, ok = tracker.Clear(42)
	assert.False(t, ok, "clearing twice reports nothing to clear")
}
