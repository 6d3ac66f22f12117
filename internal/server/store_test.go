package server

import "testing"

func TestMemoryStoreRunLifecycle(t *testing.T) {
	store, err := NewMemoryFileStore("")
	if err != nil {
		t.Fatalf("NewMemoryFileStore error: %v", err)
	}
	meta := RunMeta{
		RunID:       "run_test_1",
		Status:      RunStatusQueued,
		Source:      "test",
		CreatorType: "admin",
		CreatedAt:   nowRFC3339(),
	}
	if err := store.CreateRun(meta); err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}
	event, err := store.AppendRunEvent(meta.RunID, "queue", "queued", nil)
	if err != nil {
		t.Fatalf("AppendRunEvent error: %v", err)
	}
	if event.Seq != 1 {
		t.Fatalf("expected first seq=1, got %d", event.Seq)
	}
	updated, err := store.UpdateRun(meta.RunID, func(item *RunMeta) {
		item.Status = RunStatusRunning
	})
	if err != nil {
		t.Fatalf("UpdateRun error: %v", err)
	}
	if updated.Status != RunStatusRunning {
		t.Fatalf("expected status running, got %s", updated.Status)
	}
}

func TestMemoryStoreEventCursor(t *testing.T) {
	store, err := NewMemoryFileStore("")
	if err != nil {
		t.Fatalf("NewMemoryFileStore error: %v", err)
	}
	if err := store.CreateRun(RunMeta{RunID: "run_cursor", Status: RunStatusQueued, CreatedAt: nowRFC3339()}); err != nil {
		t.Fatalf("CreateRun error: %v", err)
	}
	for _, stage := range []string{"queue", "start", "plan"} {
		if _, err := store.AppendRunEvent("run_cursor", stage, stage, nil); err != nil {
			t.Fatalf("AppendRunEvent %s error: %v", stage, err)
		}
	}
	events := store.ListRunEvents("run_cursor", 1)
	if len(events) != 2 {
		t.Fatalf("expected 2 events after cursor 1, got %d", len(events))
	}
	if events[0].Stage != "start" || events[1].Stage != "plan" {
		t.Fatalf("unexpected event order: %s, %s", events[0].Stage, events[1].Stage)
	}
}

func TestMemoryStoreMetricsOverview(t *testing.T) {
	store, err := NewMemoryFileStore("")
	if err != nil {
		t.Fatalf("NewMemoryFileStore error: %v", err)
	}
	runs := []RunMeta{
		{RunID: "run_a", Status: RunStatusCompleted, CreatedAt: nowRFC3339(), Risk: RiskSnapshot{VulnerabilitiesFound: 3, CriticalFindings: 1}},
		{RunID: "run_b", Status: RunStatusFailed, CreatedAt: nowRFC3339()},
		{RunID: "run_c", Status: RunStatusRunning, CreatedAt: nowRFC3339()},
	}
	for _, meta := range runs {
		if err := store.CreateRun(meta); err != nil {
			t.Fatalf("CreateRun %s error: %v", meta.RunID, err)
		}
	}
	overview := store.GetMetricsOverview()
	if overview.TotalRuns != 3 {
		t.Fatalf("expected 3 total runs, got %d", overview.TotalRuns)
	}
	if overview.CompletedRuns != 1 || overview.FailedRuns != 1 || overview.RunningRuns != 1 {
		t.Fatalf("unexpected status counts: completed=%d failed=%d running=%d",
			overview.CompletedRuns, overview.FailedRuns, overview.RunningRuns)
	}
	if overview.VulnerabilitiesFound != 3 || overview.CriticalFindings != 1 {
		t.Fatalf("unexpected risk totals: vulns=%d critical=%d",
			overview.VulnerabilitiesFound, overview.CriticalFindings)
	}
}
