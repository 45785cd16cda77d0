package docs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dbscribe/dbscribe/internal/llm"
	"github.com/dbscribe/dbscribe/internal/mssql"
)

// batchDB describes a small database: two tables and one view.
func batchDB() *fakeDB {
	return &fakeDB{
		objects: []mssql.ObjectRef{
			{Schema: "dbo", Name: "Orders", Type: "table"},
			{Schema: "dbo", Name: "Products", Type: "table"},
			{Schema: "dbo", Name: "SalesView", Type: "view"},
		},
		columns: map[string][]mssql.Column{
			"dbo.Orders":    {{Name: "ID", Type: mssql.TypeInfo{DataType: "INT", MaxLength: -1}}},
			"dbo.Products":  {{Name: "ID", Type: mssql.TypeInfo{DataType: "INT", MaxLength: -1}}},
			"dbo.SalesView": {{Name: "Total", Type: mssql.TypeInfo{DataType: "MONEY", MaxLength: -1}}},
		},
		definitions: map[string]string{
			"dbo.SalesView": "CREATE VIEW dbo.SalesView AS SELECT ...",
		},
		version: "Microsoft SQL Server 2022",
	}
}

func TestDocumentBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("enrichment failure degrades, batch completes", func(t *testing.T) {
		idx := newFakeIndex()
		analyzer := &fakeAnalyzer{narrative: "Looks important.", failFor: map[string]bool{"SalesView": true}}
		d := NewDocumenter(batchDB(), analyzer, idx, nil, 0)

		if err := d.DocumentBatch(ctx, BatchOptions{IncludeAnalysis: true}); err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		if len(idx.records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(idx.records))
		}
		for _, id := range []string{"dbo.Orders", "dbo.Products"} {
			if !strings.Contains(idx.records[id].Content, analysisMarker+"Looks important.") {
				t.Errorf("%s missing analysis section", id)
			}
		}
		if strings.Contains(idx.records["dbo.SalesView"].Content, analysisMarker) {
			t.Error("view should have no analysis section after enrichment failure")
		}

		snap := d.GetProgress()
		if snap.Phase != PhaseComplete {
			t.Errorf("phase = %q, want %q", snap.Phase, PhaseComplete)
		}
		if snap.Current != 3 || snap.Total != 3 {
			t.Errorf("current/total = %d/%d, want 3/3", snap.Current, snap.Total)
		}
		// Only the two successful enrichments count toward usage.
		if snap.Usage.TotalTokens != 30 {
			t.Errorf("total tokens = %d, want 30", snap.Usage.TotalTokens)
		}
	})

	t.Run("analysis disabled never calls the analyzer", func(t *testing.T) {
		analyzer := &fakeAnalyzer{narrative: "unused"}
		d := NewDocumenter(batchDB(), analyzer, newFakeIndex(), nil, 0)

		if err := d.DocumentBatch(ctx, BatchOptions{IncludeAnalysis: false}); err != nil {
			t.Fatal(err)
		}
		if analyzer.calls != 0 {
			t.Errorf("analyzer called %d times with analysis disabled", analyzer.calls)
		}
	})

	t.Run("documenter failure aborts the batch", func(t *testing.T) {
		db := batchDB()
		delete(db.definitions, "dbo.SalesView")
		d := NewDocumenter(db, &fakeAnalyzer{}, newFakeIndex(), nil, 0)

		err := d.DocumentBatch(ctx, BatchOptions{})
		if !errors.Is(err, ErrDefinitionNotFound) {
			t.Fatalf("expected ErrDefinitionNotFound, got %v", err)
		}
		if got := d.GetProgress().Phase; got != PhaseFailed {
			t.Errorf("phase = %q, want %q", got, PhaseFailed)
		}
	})

	t.Run("continue-on-error skips failed objects", func(t *testing.T) {
		db := batchDB()
		delete(db.definitions, "dbo.SalesView")
		idx := newFakeIndex()
		d := NewDocumenter(db, &fakeAnalyzer{}, idx, nil, 0)

		if err := d.DocumentBatch(ctx, BatchOptions{ContinueOnError: true}); err != nil {
			t.Fatalf("batch should complete: %v", err)
		}
		if len(idx.records) != 2 {
			t.Errorf("expected 2 records, got %d", len(idx.records))
		}
		snap := d.GetProgress()
		if snap.Phase != PhaseComplete || snap.Current != 3 {
			t.Errorf("phase/current = %q/%d, want Complete/3", snap.Phase, snap.Current)
		}
	})

	t.Run("unsupported discovered type is skipped", func(t *testing.T) {
		db := batchDB()
		db.objects = append(db.objects, mssql.ObjectRef{Schema: "dbo", Name: "Trg", Type: "trigger"})
		idx := newFakeIndex()
		d := NewDocumenter(db, &fakeAnalyzer{}, idx, nil, 0)

		if err := d.DocumentBatch(ctx, BatchOptions{}); err != nil {
			t.Fatal(err)
		}
		if len(idx.records) != 3 {
			t.Errorf("expected 3 records, got %d", len(idx.records))
		}
	})

	t.Run("discovery failure fails the batch", func(t *testing.T) {
		db := batchDB()
		db.discoverErr = errors.New("login failed")
		d := NewDocumenter(db, &fakeAnalyzer{}, newFakeIndex(), nil, 0)

		if err := d.DocumentBatch(ctx, BatchOptions{}); err == nil {
			t.Fatal("expected error")
		}
		if got := d.GetProgress().Phase; got != PhaseFailed {
			t.Errorf("phase = %q, want %q", got, PhaseFailed)
		}
	})
}

// blockingDB blocks discovery until released, to hold a batch open.
type blockingDB struct {
	*fakeDB
	release chan struct{}
}

func (b *blockingDB) DiscoverObjects(ctx context.Context, types, schemas []string) ([]mssql.ObjectRef, error) {
	<-b.release
	return b.fakeDB.DiscoverObjects(ctx, types, schemas)
}

func TestBatchAdmission(t *testing.T) {
	db := &blockingDB{fakeDB: batchDB(), release: make(chan struct{})}
	d := NewDocumenter(db, &fakeAnalyzer{}, newFakeIndex(), nil, 0)

	if err := d.StartBatch(BatchOptions{}); err != nil {
		t.Fatalf("first batch rejected: %v", err)
	}
	if err := d.StartBatch(BatchOptions{}); !errors.Is(err, ErrBatchInProgress) {
		t.Errorf("expected ErrBatchInProgress, got %v", err)
	}
	if err := d.DocumentBatch(context.Background(), BatchOptions{}); !errors.Is(err, ErrBatchInProgress) {
		t.Errorf("expected ErrBatchInProgress, got %v", err)
	}

	close(db.release)
	deadline := time.Now().Add(5 * time.Second)
	for d.Running() {
		if time.Now().After(deadline) {
			t.Fatal("batch did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Slot is free again.
	if err := d.DocumentBatch(context.Background(), BatchOptions{}); err != nil {
		t.Errorf("batch after release failed: %v", err)
	}
}

func TestGenerateDocumentationSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("strips the analysis section", func(t *testing.T) {
		idx := newFakeIndex()
		stored := "Table: dbo.Orders\n\nColumns:\n\nID (INT)"
		if err := idx.Upsert(ctx, "dbo", "Orders", "table", stored+analysisMarker+"Narrative here.", nil); err != nil {
			t.Fatal(err)
		}
		d := NewDocumenter(batchDB(), &fakeAnalyzer{}, idx, nil, 0)

		summary, err := d.GenerateDocumentationSummary(ctx, "dbo", "Orders", "table")
		if err != nil {
			t.Fatal(err)
		}
		if summary != stored {
			t.Errorf("summary = %q, want content before marker", summary)
		}
	})

	t.Run("content without analysis passes through", func(t *testing.T) {
		idx := newFakeIndex()
		if err := idx.Upsert(ctx, "dbo", "Orders", "table", "Table: dbo.Orders", nil); err != nil {
			t.Fatal(err)
		}
		d := NewDocumenter(batchDB(), &fakeAnalyzer{}, idx, nil, 0)

		summary, err := d.GenerateDocumentationSummary(ctx, "dbo", "Orders", "table")
		if err != nil {
			t.Fatal(err)
		}
		if summary != "Table: dbo.Orders" {
			t.Errorf("summary = %q", summary)
		}
	})

	t.Run("no documentation found", func(t *testing.T) {
		d := NewDocumenter(batchDB(), &fakeAnalyzer{}, newFakeIndex(), nil, 0)
		summary, err := d.GenerateDocumentationSummary(ctx, "dbo", "Nope", "table")
		if err != nil {
			t.Fatal(err)
		}
		if summary != "No documentation found for table dbo.Nope" {
			t.Errorf("summary = %q", summary)
		}
	})
}

func TestSearchWithIntent(t *testing.T) {
	ctx := context.Background()
	idx := newFakeIndex()
	_ = idx.Upsert(ctx, "dbo", "Orders", "table", "orders doc", nil)
	_ = idx.Upsert(ctx, "dbo", "SalesView", "view", "sales doc", nil)

	t.Run("typed intent filters results", func(t *testing.T) {
		analyzer := &fakeAnalyzer{intent: &llm.Intent{ObjectType: "view", SearchQuery: "sales"}}
		d := NewDocumenter(batchDB(), analyzer, idx, nil, 0)

		intent, results, err := d.SearchWithIntent(ctx, "show me sales views", 5)
		if err != nil {
			t.Fatal(err)
		}
		if intent.ObjectType != "view" {
			t.Errorf("intent type = %q", intent.ObjectType)
		}
		if len(results) != 1 || results[0].ID != "dbo.SalesView" {
			t.Errorf("unexpected results: %+v", results)
		}
	})

	t.Run("any intent returns everything", func(t *testing.T) {
		d := NewDocumenter(batchDB(), &fakeAnalyzer{}, idx, nil, 0)
		_, results, err := d.SearchWithIntent(ctx, "anything", 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Errorf("expected 2 results, got %d", len(results))
		}
	})
}

func TestRelatedObjects(t *testing.T) {
	ctx := context.Background()
	idx := newFakeIndex()
	_ = idx.Upsert(ctx, "dbo", "Orders", "table", "orders doc", nil)
	_ = idx.Upsert(ctx, "dbo", "OrderLines", "table", "order lines doc", nil)
	d := NewDocumenter(batchDB(), &fakeAnalyzer{}, idx, nil, 0)

	results, err := d.RelatedObjects(ctx, "dbo", "Orders", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "dbo.Orders" {
			t.Error("object should not be related to itself")
		}
	}
	if len(results) != 1 || results[0].ID != "dbo.OrderLines" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestTestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("database and llm healthy", func(t *testing.T) {
		d := NewDocumenter(batchDB(), &fakeAnalyzer{}, newFakeIndex(), nil, 0)
		status := d.TestConnection(ctx)
		if !status.Connected || status.DatabaseVersion != "Microsoft SQL Server 2022" {
			t.Errorf("unexpected status: %+v", status)
		}
		if status.LLMStatus != "ok" {
			t.Errorf("llm status = %q", status.LLMStatus)
		}
	})

	t.Run("llm failure does not fail the test", func(t *testing.T) {
		analyzer := &fakeAnalyzer{checkErr: errors.New("no provider")}
		d := NewDocumenter(batchDB(), analyzer, newFakeIndex(), nil, 0)
		status := d.TestConnection(ctx)
		if !status.Connected {
			t.Error("database connection should still be reported healthy")
		}
		if status.LLMStatus == "ok" {
			t.Error("llm status should carry the failure")
		}
	})

	t.Run("database failure", func(t *testing.T) {
		db := batchDB()
		db.versionErr = errors.New("network unreachable")
		d := NewDocumenter(db, &fakeAnalyzer{}, newFakeIndex(), nil, 0)
		status := d.TestConnection(ctx)
		if status.Connected || status.Error == "" {
			t.Errorf("unexpected status: %+v", status)
		}
	})
}

func TestClearDocumentation(t *testing.T) {
	ctx := context.Background()
	idx := newFakeIndex()
	d := NewDocumenter(batchDB(), &fakeAnalyzer{}, idx, nil, 0)

	if err := d.DocumentBatch(ctx, BatchOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := d.ClearDocumentation(ctx); err != nil {
		t.Fatal(err)
	}
	if idx.cleared != 1 {
		t.Errorf("index cleared %d times, want 1", idx.cleared)
	}
	snap := d.GetProgress()
	if snap.Phase != PhaseNotStarted || snap.Current != 0 {
		t.Errorf("progress not reset: %+v", snap)
	}

	t.Run("clear failure leaves progress alone", func(t *testing.T) {
		if err := d.DocumentBatch(ctx, BatchOptions{}); err != nil {
			t.Fatal(err)
		}
		idx.clearErr = errors.New("disk gone")
		if err := d.ClearDocumentation(ctx); err == nil {
			t.Fatal("expected error")
		}
		if got := d.GetProgress().Phase; got != PhaseComplete {
			t.Errorf("phase = %q, want Complete preserved on failed clear", got)
		}
	})
}
