package services

import (
	"errors"
	"sync"
	"testing"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	tracker := NewProgressTracker()

	if snap := tracker.Snapshot(); snap.Stage != StageIdle {
		t.Fatalf("initial stage = %s, want idle", snap.Stage)
	}
	if tracker.IsRunning() {
		t.Fatal("fresh tracker must not be running")
	}

	tracker.Enter(StageInit, "starting", "init", 0)
	if !tracker.IsRunning() {
		t.Fatal("tracker should be running after init")
	}

	tracker.Enter(StageParsing, "parsing", "parse", 5)
	tracker.Advance(3, 10, "parsing", "parse", 8, nil)
	snap := tracker.Snapshot()
	if snap.CurrentUnit != 3 || snap.TotalUnits != 10 {
		t.Errorf("units = %d/%d, want 3/10", snap.CurrentUnit, snap.TotalUnits)
	}
	if snap.ProgressPercent != 8 {
		t.Errorf("percent = %v, want 8", snap.ProgressPercent)
	}

	tracker.Complete("done", map[string]any{"total_units": 10})
	snap = tracker.Snapshot()
	if snap.Stage != StageCompleted || snap.ProgressPercent != 100 {
		t.Errorf("final snapshot = %s/%v, want completed/100", snap.Stage, snap.ProgressPercent)
	}
	if !tracker.IsCompleted() || tracker.IsRunning() {
		t.Error("completed tracker state flags are wrong")
	}
}

func TestProgressTrackerPercentIsMonotonic(t *testing.T) {
	tracker := NewProgressTracker()

	tracker.Enter(StageProcessing, "embedding", "embed", 40)
	tracker.Advance(1, 2, "embedding", "embed", 30, nil)
	if got := tracker.Snapshot().ProgressPercent; got != 40 {
		t.Errorf("percent regressed to %v, want clamped at 40", got)
	}

	tracker.Advance(2, 2, "embedding", "embed", 500, nil)
	if got := tracker.Snapshot().ProgressPercent; got != 100 {
		t.Errorf("percent = %v, want capped at 100", got)
	}
}

func TestProgressTrackerFail(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Enter(StageStoring, "storing", "store", 90)
	tracker.Fail(errors.New("upsert rejected"))

	snap := tracker.Snapshot()
	if snap.Stage != StageError {
		t.Errorf("stage = %s, want error", snap.Stage)
	}
	if snap.ProgressPercent != 0 {
		t.Errorf("percent = %v, want 0 after failure", snap.ProgressPercent)
	}
	if snap.Error != "upsert rejected" {
		t.Errorf("error detail = %q", snap.Error)
	}
	if !tracker.IsError() {
		t.Error("IsError should report true")
	}
}

func TestProgressTrackerResetClearsState(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Fail(errors.New("boom"))
	tracker.Reset()

	snap := tracker.Snapshot()
	if snap.Stage != StageIdle || snap.Error != "" || snap.ProgressPercent != 0 {
		t.Errorf("reset snapshot = %+v", snap)
	}

	// After a reset the clamp must allow percent to start over.
	tracker.Enter(StageInit, "starting", "init", 0)
	if got := tracker.Snapshot().ProgressPercent; got != 0 {
		t.Errorf("percent after reset = %v, want 0", got)
	}
}

func TestProgressTrackerConcurrentSnapshot(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.Enter(StageProcessing, "embedding", "embed", 15)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.Advance(j, 100, "embedding", "embed", float64(15+j/2),
					map[string]any{"unit": j})
				_ = tracker.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := tracker.Snapshot()
	if snap.ProgressPercent < 15 || snap.ProgressPercent > 100 {
		t.Errorf("final percent out of range: %v", snap.ProgressPercent)
	}
}

func TestSnapshotDataIsDeepCopied(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetData(map[string]any{"filename": "a.pdf"})

	snap := tracker.Snapshot()
	snap.Data["filename"] = "mutated"

	if got := tracker.Snapshot().Data["filename"]; got != "a.pdf" {
		t.Errorf("tracker data mutated through snapshot: %v", got)
	}
}
