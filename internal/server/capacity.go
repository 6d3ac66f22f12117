package server

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// CapacityManager protects the systems under test from the service itself:
// it caps concurrent runs per target and tracks invocations in a sliding
// one-minute window so back-to-back assessments cannot hammer one endpoint.
type CapacityManager struct {
	mu      sync.Mutex
	cfg     CapacityConfig
	targets map[string]*targetState
}

type targetState struct {
	ActiveRuns     int
	InvocationsMin []invocationMark
}

type invocationMark struct {
	At    time.Time
	Count int
}

// CapacityLease is held for the duration of one run against one target.
type CapacityLease struct {
	Target string
	ref    *targetState
}

func NewCapacityManager(cfg CapacityConfig) *CapacityManager {
	if cfg.MaxRunsPerTarget <= 0 {
		cfg.MaxRunsPerTarget = 2
	}
	if cfg.InvocationsPerMin <= 0 {
		cfg.InvocationsPerMin = 300
	}
	return &CapacityManager{
		cfg:     cfg,
		targets: map[string]*targetState{},
	}
}

// Acquire reserves a run slot for the target, rejecting when the target is
// already at its parallel-run cap or its invocation window is saturated.
// estimatedCalls is the planned test-case count for the run.
func (m *CapacityManager) Acquire(targetName string, estimatedCalls int) (CapacityLease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimSpace(targetName)
	if key == "" {
		key = "unknown"
	}
	state, ok := m.targets[key]
	if !ok {
		state = &targetState{}
		m.targets[key] = state
	}
	now := time.Now()
	m.rollWindow(state, now)

	if state.ActiveRuns >= m.cfg.MaxRunsPerTarget {
		return CapacityLease{}, errors.New("target is at its parallel run limit")
	}
	if invocationsInWindow(state.InvocationsMin)+estimatedCalls > m.cfg.InvocationsPerMin {
		return CapacityLease{}, errors.New("target invocation window is saturated")
	}

	state.ActiveRuns++
	return CapacityLease{Target: key, ref: state}, nil
}

// Commit releases the run slot and records how many invocations the run
// actually made.
func (m *CapacityManager) Commit(lease CapacityLease, actualCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lease.ref == nil {
		return
	}
	now := time.Now()
	m.rollWindow(lease.ref, now)
	if actualCalls > 0 {
		lease.ref.InvocationsMin = append(lease.ref.InvocationsMin, invocationMark{At: now, Count: actualCalls})
	}
	if lease.ref.ActiveRuns > 0 {
		lease.ref.ActiveRuns--
	}
}

// Reject releases the slot without charging the window, for runs that
// failed before touching the target.
func (m *CapacityManager) Reject(lease CapacityLease) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lease.ref == nil {
		return
	}
	if lease.ref.ActiveRuns > 0 {
		lease.ref.ActiveRuns--
	}
}

func (m *CapacityManager) rollWindow(state *targetState, now time.Time) {
	cutoff := now.Add(-1 * time.Minute)
	state.InvocationsMin = filterRecentMarks(state.InvocationsMin, cutoff)
}

func filterRecentTime(items []time.Time, cutoff time.Time) []time.Time {
	if len(items) == 0 {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if item.After(cutoff) {
			out = append(out, item)
		}
	}
	return out
}

func filterRecentMarks(items []invocationMark, cutoff time.Time) []invocationMark {
	if len(items) == 0 {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if item.At.After(cutoff) {
			out = append(out, item)
		}
	}
	return out
}

func invocationsInWindow(items []invocationMark) int {
	total := 0
	for _, item := range items {
		total += item.Count
	}
	return total
}
