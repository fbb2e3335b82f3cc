// Package sockhealth reads OS-level TCP health (RTT, retransmits,
// congestion window) for the debug bridge's own control-channel socket —
// ground truth about the transport the debug telemetry rides over, distinct
// from the simulated per-connection RTT/jitter EWMA pkg/recvpipeline and
// pkg/session track for game clients (spec.md §3's NetworkSnapshotAck
// fields are a simulation-level estimate, not a syscall readout).
package sockhealth

import "sync"

// Snapshot is the trimmed subset of Linux's tcp_info this package surfaces,
// rather than the full field set in the teacher's pkg/linux.TCPInfo.
type Snapshot struct {
	State            uint8
	Retransmits      uint8
	RTTMicros        uint32
	RTTVarMicros     uint32
	CongestionWindow uint32
	SendMSS          uint32
}

type entry struct {
	labels []string
}

// Monitor tracks a set of live file descriptors and can be polled for each
// one's current TCP health. It implements pkg/debugbridge.HealthMonitor.
type Monitor struct {
	mu      sync.Mutex
	tracked map[int]entry
	logger  func(error)
}

// NewMonitor returns a Monitor with no tracked descriptors. logger receives
// errors from failed Snapshot calls during Poll; it may be nil to discard
// them silently.
func NewMonitor(logger func(error)) *Monitor {
	return &Monitor{tracked: make(map[int]entry), logger: logger}
}

// Track registers fd for health polling, labelled for whatever the caller
// wants to correlate it against (e.g. the debug client's connection id).
func (m *Monitor) Track(fd int, labels []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracked[fd] = entry{labels: labels}
}

// Untrack removes fd from the tracked set.
func (m *Monitor) Untrack(fd int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tracked, fd)
}

// Poll reads a fresh Snapshot for every tracked descriptor, dropping (and
// logging) any that fail and continuing with the rest.
func (m *Monitor) Poll() map[int]Snapshot {
	m.mu.Lock()
	fds := make([]int, 0, len(m.tracked))
	for fd := range m.tracked {
		fds = append(fds, fd)
	}
	m.mu.Unlock()

	out := make(map[int]Snapshot, len(fds))
	for _, fd := range fds {
		snap, err := getTCPInfo(fd)
		if err != nil {
			if m.logger != nil {
				m.logger(err)
			}
			continue
		}
		out[fd] = snap
	}
	return out
}

// TrackedCount reports how many descriptors are currently registered.
func (m *Monitor) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}
