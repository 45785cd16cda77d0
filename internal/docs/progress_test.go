package docs

import (
	"testing"
	"time"

	"github.com/dbscribe/dbscribe/internal/llm"
)

func TestProgressTracker(t *testing.T) {
	t.Run("initial state", func(t *testing.T) {
		p := newProgressTracker()
		snap := p.Snapshot()
		if snap.Phase != PhaseNotStarted {
			t.Errorf("phase = %q, want %q", snap.Phase, PhaseNotStarted)
		}
		if snap.StartTime != nil {
			t.Error("start time should be nil before a batch")
		}
		if snap.EstimatedTimeRemaining != nil {
			t.Error("estimate should be nil before a batch")
		}
	})

	t.Run("begin sets id, phase and start time", func(t *testing.T) {
		p := newProgressTracker()
		id := p.begin()
		snap := p.Snapshot()
		if id == "" || snap.BatchID != id {
			t.Errorf("batch id = %q / %q", id, snap.BatchID)
		}
		if snap.Phase != PhaseInitializing {
			t.Errorf("phase = %q, want %q", snap.Phase, PhaseInitializing)
		}
		if snap.StartTime == nil {
			t.Fatal("start time not set")
		}
	})

	t.Run("new batch gets a new id", func(t *testing.T) {
		p := newProgressTracker()
		if p.begin() == p.begin() {
			t.Error("expected distinct batch ids")
		}
	})

	t.Run("no estimate until second object", func(t *testing.T) {
		p := newProgressTracker()
		p.begin()
		p.setTotal(10)
		p.advance()
		if p.Snapshot().EstimatedTimeRemaining != nil {
			t.Error("estimate should be nil after one object")
		}
		p.advance()
		if p.Snapshot().EstimatedTimeRemaining == nil {
			t.Error("estimate should be set after two objects")
		}
	})

	t.Run("estimate extrapolates elapsed time", func(t *testing.T) {
		p := newProgressTracker()
		p.begin()
		// Backdate the start so per-object time is roughly 1s.
		past := time.Now().Add(-2 * time.Second)
		p.mu.Lock()
		p.snapshot.StartTime = &past
		p.mu.Unlock()
		p.setTotal(10)
		p.advance()
		p.advance()

		snap := p.Snapshot()
		if snap.EstimatedTimeRemaining == nil {
			t.Fatal("estimate not set")
		}
		// 8 remaining at ~1s each.
		if got := *snap.EstimatedTimeRemaining; got < 6 || got > 10 {
			t.Errorf("estimate = %ds, want roughly 8s", got)
		}
	})

	t.Run("usage and cost accumulate", func(t *testing.T) {
		p := newProgressTracker()
		p.begin()
		p.addUsage(llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, 0.01)
		p.addUsage(llm.Usage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30}, 0.02)
		snap := p.Snapshot()
		if snap.Usage.TotalTokens != 45 {
			t.Errorf("total tokens = %d, want 45", snap.Usage.TotalTokens)
		}
		if snap.Cost < 0.029 || snap.Cost > 0.031 {
			t.Errorf("cost = %f, want 0.03", snap.Cost)
		}
	})

	t.Run("terminal phases", func(t *testing.T) {
		p := newProgressTracker()
		p.begin()
		p.complete()
		if got := p.Snapshot().Phase; got != PhaseComplete {
			t.Errorf("phase = %q, want %q", got, PhaseComplete)
		}
		p.fail()
		if got := p.Snapshot().Phase; got != PhaseFailed {
			t.Errorf("phase = %q, want %q", got, PhaseFailed)
		}
	})

	t.Run("reset returns to initial state", func(t *testing.T) {
		p := newProgressTracker()
		p.begin()
		p.setTotal(3)
		p.advance()
		p.reset()
		snap := p.Snapshot()
		if snap.Phase != PhaseNotStarted || snap.Current != 0 || snap.Total != 0 || snap.StartTime != nil {
			t.Errorf("unexpected state after reset: %+v", snap)
		}
	})

	t.Run("snapshot is isolated from later updates", func(t *testing.T) {
		p := newProgressTracker()
		p.begin()
		p.setTotal(10)
		p.advance()
		p.advance()
		snap := p.Snapshot()
		before := *snap.EstimatedTimeRemaining
		p.advance()
		if *snap.EstimatedTimeRemaining != before {
			t.Error("snapshot estimate mutated by later advance")
		}
	})
}

func TestParseObjectType(t *testing.T) {
	for i, tag := range []string{"table", "view", "procedure", "function"} {
		got, ok := ParseObjectType(tag)
		if !ok || got != ObjectType(i) {
			t.Errorf("ParseObjectType(%q) = %v, %v", tag, got, ok)
		}
		if got.String() != tag {
			t.Errorf("String() = %q, want %q", got.String(), tag)
		}
	}
	if _, ok := ParseObjectType("trigger"); ok {
		t.Error("trigger should not parse")
	}
	if _, ok := ParseObjectType(""); ok {
		t.Error("empty tag should not parse")
	}
}
