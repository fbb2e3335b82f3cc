package sockhealth

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestTrackUntrackBookkeeping(t *testing.T) {
	m := NewMonitor(nil)
	m.Track(42, []string{"client-1"})
	assert.Equal(t, m.TrackedCount(), 1)

	m.Untrack(42)
	assert.Equal(t, m.TrackedCount(), 0)
}

func TestPollSkipsFailedDescriptorsWithoutPanicking(t *testing.T) {
	m := NewMonitor(func(err error) {})
	// Descriptor 99999 is never a valid open fd in the test process, so
	// getTCPInfo is expected to fail; Poll must not panic or include it.
	m.Track(99999, nil)
	snapshots := m.Poll()
	assert.Equal(t, len(snapshots), 0)
}
