package metrics

import (
	"testing"
	"time"
)

func TestCollectorTimings(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpMetadataQuery, 10*time.Millisecond)
	c.RecordTiming(OpMetadataQuery, 30*time.Millisecond)

	snap := c.Snapshot()
	if snap.MetadataQuery == nil {
		t.Fatal("metadata_query snapshot missing")
	}
	if snap.MetadataQuery.Count != 2 {
		t.Errorf("count = %d, want 2", snap.MetadataQuery.Count)
	}
	if snap.MetadataQuery.TotalTimeMs != 40 {
		t.Errorf("total = %dms, want 40", snap.MetadataQuery.TotalTimeMs)
	}
	if snap.MetadataQuery.MinTimeMs != 10 || snap.MetadataQuery.MaxTimeMs != 30 {
		t.Errorf("min/max = %d/%d, want 10/30", snap.MetadataQuery.MinTimeMs, snap.MetadataQuery.MaxTimeMs)
	}

	if snap.LLMAnalyze != nil {
		t.Error("unused operation should snapshot as nil")
	}
}

func TestCollectorLLMUsage(t *testing.T) {
	c := NewCollector()

	c.RecordLLMUsage(OpLLMAnalyze, 100*time.Millisecond, 500, 100)
	c.RecordLLMUsage(OpLLMAnalyze, 200*time.Millisecond, 300, 50)

	snap := c.Snapshot()
	if snap.LLMAnalyze == nil {
		t.Fatal("llm_analyze snapshot missing")
	}
	if snap.LLMAnalyze.Count != 2 {
		t.Errorf("count = %d", snap.LLMAnalyze.Count)
	}
	if snap.LLMAnalyze.InputTokens == nil || *snap.LLMAnalyze.InputTokens != 800 {
		t.Errorf("input tokens = %v, want 800", snap.LLMAnalyze.InputTokens)
	}
	if snap.LLMAnalyze.OutputTokens == nil || *snap.LLMAnalyze.OutputTokens != 150 {
		t.Errorf("output tokens = %v, want 150", snap.LLMAnalyze.OutputTokens)
	}
	if snap.LLMAnalyze.AvgInputTokens == nil || *snap.LLMAnalyze.AvgInputTokens != 400 {
		t.Errorf("avg input tokens = %v, want 400", snap.LLMAnalyze.AvgInputTokens)
	}
}

func TestCollectorConcurrency(t *testing.T) {
	c := NewCollector()
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpIndexSearch, time.Millisecond)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	snap := c.Snapshot()
	if snap.IndexSearch == nil || snap.IndexSearch.Count != 400 {
		t.Errorf("count = %+v, want 400", snap.IndexSearch)
	}
}
