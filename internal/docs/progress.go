package docs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbscribe/dbscribe/internal/llm"
)

// Batch phases. A batch moves Not Started -> Initializing -> Processing
// and ends in Complete or Failed.
const (
	PhaseNotStarted   = "Not Started"
	PhaseInitializing = "Initializing"
	PhaseProcessing   = "Processing"
	PhaseComplete     = "Complete"
	PhaseFailed       = "Failed"
)

// ProgressSnapshot is a point-in-time copy of batch progress, shaped for
// the progress read endpoint.
type ProgressSnapshot struct {
	BatchID                string     `json:"batch_id,omitempty"`
	Current                int        `json:"current"`
	Total                  int        `json:"total"`
	CurrentObject          string     `json:"current_object"`
	Phase                  string     `json:"phase"`
	StartTime              *time.Time `json:"start_time"`
	EstimatedTimeRemaining *int       `json:"estimated_time_remaining"`
	Cost                   float64    `json:"cost"`
	Usage                  llm.Usage  `json:"usage"`
}

// progressTracker holds mutable batch progress behind a mutex so the
// progress endpoint can read while a batch goroutine writes.
type progressTracker struct {
	mu       sync.Mutex
	snapshot ProgressSnapshot
}

func newProgressTracker() *progressTracker {
	return &progressTracker{snapshot: ProgressSnapshot{Phase: PhaseNotStarted}}
}

// reset returns the tracker to its initial state.
func (p *progressTracker) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = ProgressSnapshot{Phase: PhaseNotStarted}
}

// begin starts a new batch: fresh state, new batch ID, start time now.
func (p *progressTracker) begin() string {
	id := uuid.NewString()
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = ProgressSnapshot{
		BatchID:   id,
		Phase:     PhaseInitializing,
		StartTime: &now,
	}
	return id
}

func (p *progressTracker) setTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Total = total
	p.snapshot.Phase = PhaseProcessing
}

func (p *progressTracker) setCurrentObject(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.CurrentObject = name
}

// advance increments the processed count and refreshes the remaining-time
// estimate. The estimate stays nil until at least two objects are done,
// since a single sample is too noisy to extrapolate from.
func (p *progressTracker) advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Current++
	if p.snapshot.Current > 1 && p.snapshot.StartTime != nil {
		elapsed := time.Since(*p.snapshot.StartTime).Seconds()
		perObject := elapsed / float64(p.snapshot.Current)
		remaining := int(float64(p.snapshot.Total-p.snapshot.Current) * perObject)
		p.snapshot.EstimatedTimeRemaining = &remaining
	}
}

func (p *progressTracker) addUsage(u llm.Usage, cost float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Usage.Add(u)
	p.snapshot.Cost += cost
}

func (p *progressTracker) complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Phase = PhaseComplete
}

func (p *progressTracker) fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Phase = PhaseFailed
}

// Snapshot returns a copy of the current progress. The estimate pointer
// is copied so callers cannot observe later mutation.
func (p *progressTracker) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snapshot
	if s.EstimatedTimeRemaining != nil {
		v := *s.EstimatedTimeRemaining
		s.EstimatedTimeRemaining = &v
	}
	if s.StartTime != nil {
		t := *s.StartTime
		s.StartTime = &t
	}
	return s
}
