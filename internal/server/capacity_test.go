package server

import "testing"

func TestCapacityParallelRunLimit(t *testing.T) {
	manager := NewCapacityManager(CapacityConfig{MaxRunsPerTarget: 2, InvocationsPerMin: 100})
	first, err := manager.Acquire("staging-bot", 10)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := manager.Acquire("staging-bot", 10); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if _, err := manager.Acquire("staging-bot", 10); err == nil {
		t.Fatalf("expected third acquire to hit the parallel run limit")
	}
	// other targets are unaffected
	if _, err := manager.Acquire("prod-bot", 10); err != nil {
		t.Fatalf("acquire for different target failed: %v", err)
	}
	manager.Commit(first, 10)
	if _, err := manager.Acquire("staging-bot", 10); err != nil {
		t.Fatalf("acquire after commit failed: %v", err)
	}
}

func TestCapacityInvocationWindow(t *testing.T) {
	manager := NewCapacityManager(CapacityConfig{MaxRunsPerTarget: 10, InvocationsPerMin: 50})
	lease, err := manager.Acquire("staging-bot", 40)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	manager.Commit(lease, 40)
	if _, err := manager.Acquire("staging-bot", 20); err == nil {
		t.Fatalf("expected window saturation at 40+20 > 50")
	}
	if _, err := manager.Acquire("staging-bot", 5); err != nil {
		t.Fatalf("small acquire within window failed: %v", err)
	}
}

func TestCapacityRejectDoesNotChargeWindow(t *testing.T) {
	manager := NewCapacityManager(CapacityConfig{MaxRunsPerTarget: 1, InvocationsPerMin: 50})
	lease, err := manager.Acquire("staging-bot", 50)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	manager.Reject(lease)
	if _, err := manager.Acquire("staging-bot", 50); err != nil {
		t.Fatalf("acquire after reject failed: %v", err)
	}
}
