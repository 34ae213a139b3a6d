package services

import (
	"fmt"
	"sync"
)

// Stage of an ingestion run.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageInit       Stage = "init"
	StageParsing    Stage = "parsing"
	StageProcessing Stage = "processing"
	StageStoring    Stage = "storing"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// Snapshot is a point-in-time copy of ingestion progress. The Data field
// is stage-specific.
type Snapshot struct {
	Stage           Stage          `json:"stage"`
	TotalUnits      int            `json:"total_units"`
	CurrentUnit     int            `json:"current_unit"`
	ProgressPercent float64        `json:"progress_percent"`
	Message         string         `json:"message"`
	CurrentStep     string         `json:"current_step"`
	Error           string         `json:"error,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// ProgressTracker is the observable state of one ingestion run. The
// pipeline mutates it while another goroutine may poll Snapshot(); all
// reads are full copies. Percent is clamped to be non-decreasing within a
// run, except for the error transition which resets it to zero.
type ProgressTracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewProgressTracker() *ProgressTracker {
	t := &ProgressTracker{}
	t.Reset()
	return t
}

// Reset returns the tracker to its initial idle state. Called at the
// start of every ingestion run.
func (t *ProgressTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{Stage: StageIdle}
}

// Snapshot returns a consistent full copy of the current state.
func (t *ProgressTracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := t.snap
	if t.snap.Data != nil {
		snap.Data = make(map[string]any, len(t.snap.Data))
		for k, v := range t.snap.Data {
			snap.Data[k] = v
		}
	}
	return snap
}

// Enter moves the tracker into a stage.
func (t *ProgressTracker) Enter(stage Stage, message, step string, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = stage
	t.snap.Message = message
	t.snap.CurrentStep = step
	t.snap.ProgressPercent = t.clampPercent(percent)
}

// Advance reports per-unit progress within the current stage.
func (t *ProgressTracker) Advance(current, total int, message, step string, percent float64, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.CurrentUnit = current
	t.snap.TotalUnits = total
	t.snap.Message = message
	t.snap.CurrentStep = step
	t.snap.ProgressPercent = t.clampPercent(percent)
	if data != nil {
		t.snap.Data = data
	}
}

// SetData replaces the stage-specific payload without touching progress.
func (t *ProgressTracker) SetData(data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Data = data
}

// Complete marks the run finished at 100 percent.
func (t *ProgressTracker) Complete(message string, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = StageCompleted
	t.snap.Message = message
	t.snap.CurrentStep = "done"
	t.snap.ProgressPercent = 100
	if data != nil {
		t.snap.Data = data
	}
}

// Fail marks the run errored. Percent resets to zero and the error detail
// is recorded. The pipeline still returns the error to its caller; the
// tracker is only a side channel.
func (t *ProgressTracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = StageError
	t.snap.Error = err.Error()
	t.snap.Message = fmt.Sprintf("ingestion failed: %v", err)
	t.snap.ProgressPercent = 0
}

// IsCompleted reports whether the run finished successfully.
func (t *ProgressTracker) IsCompleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Stage == StageCompleted
}

// IsError reports whether the run failed.
func (t *ProgressTracker) IsError() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Stage == StageError
}

// IsRunning reports whether a run is in flight.
func (t *ProgressTracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch t.snap.Stage {
	case StageInit, StageParsing, StageProcessing, StageStoring:
		return true
	}
	return false
}

// clampPercent keeps percent monotonic within a run. Callers hold the lock.
func (t *ProgressTracker) clampPercent(percent float64) float64 {
	if percent < t.snap.ProgressPercent {
		return t.snap.ProgressPercent
	}
	if percent > 100 {
		return 100
	}
	return percent
}
