package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dbscribe/dbscribe/internal/metrics"
)

func TestGatewayAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("nil model is unavailable", func(t *testing.T) {
		g := NewGateway(nil, nil)
		_, _, _, err := g.Analyze(ctx, "Table: dbo.Foo", "table")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("unknown object type is unavailable", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{response: "fine"}, nil)
		_, _, _, err := g.Analyze(ctx, "Trigger: dbo.Foo", "trigger")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("provider error surfaces as unavailable without retry", func(t *testing.T) {
		fake := &fakeGenerator{err: errors.New("rate limited")}
		g := newGatewayWith(fake, nil)
		_, _, _, err := g.Analyze(ctx, "Table: dbo.Foo", "table")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
		if len(fake.prompts) != 1 {
			t.Errorf("expected exactly one provider call, got %d", len(fake.prompts))
		}
	})

	t.Run("success returns narrative, usage and cost", func(t *testing.T) {
		fake := &fakeGenerator{
			response: "This table stores customers.",
			usage:    Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
			cost:     0.0042,
		}
		collector := metrics.NewCollector()
		g := newGatewayWith(fake, collector)

		text, usage, cost, err := g.Analyze(ctx, "Table: dbo.Customers", "table")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "This table stores customers." {
			t.Errorf("unexpected narrative: %q", text)
		}
		if usage.TotalTokens != 120 {
			t.Errorf("TotalTokens = %d, want 120", usage.TotalTokens)
		}
		if cost != 0.0042 {
			t.Errorf("cost = %f, want 0.0042", cost)
		}
		if len(fake.prompts) != 1 || !strings.Contains(fake.prompts[0], "Table: dbo.Customers") {
			t.Errorf("document not embedded in prompt: %v", fake.prompts)
		}

		snap := collector.Snapshot()
		if snap.LLMAnalyze == nil || snap.LLMAnalyze.Count != 1 {
			t.Errorf("expected one recorded llm_analyze operation, got %+v", snap.LLMAnalyze)
		}
	})

	t.Run("each object type has a prompt", func(t *testing.T) {
		for _, tag := range []string{"table", "view", "procedure", "function"} {
			fake := &fakeGenerator{response: "ok"}
			g := newGatewayWith(fake, nil)
			if _, _, _, err := g.Analyze(ctx, "doc", tag); err != nil {
				t.Errorf("Analyze(%q) returned %v", tag, err)
			}
		}
	})
}

func TestGatewayCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("nil model", func(t *testing.T) {
		if err := NewGateway(nil, nil).Check(ctx); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{err: errors.New("boom")}, nil)
		if err := g.Check(ctx); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("healthy provider", func(t *testing.T) {
		g := newGatewayWith(&fakeGenerator{response: "OK"}, nil)
		if err := g.Check(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
