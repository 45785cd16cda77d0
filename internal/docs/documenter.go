package docs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dbscribe/dbscribe/internal/index"
	"github.com/dbscribe/dbscribe/internal/llm"
	"github.com/dbscribe/dbscribe/internal/mssql"
)

// Database is the metadata source a Documenter reads from.
type Database interface {
	DiscoverObjects(ctx context.Context, types, schemas []string) ([]mssql.ObjectRef, error)
	TableColumns(ctx context.Context, schema, name string) ([]mssql.Column, error)
	TableIndexes(ctx context.Context, schema, name string) ([]mssql.Index, error)
	TableForeignKeys(ctx context.Context, schema, name string) ([]mssql.ForeignKey, error)
	ViewColumns(ctx context.Context, schema, name string) ([]mssql.Column, error)
	ProcedureParams(ctx context.Context, schema, name string) ([]mssql.Param, error)
	FunctionParams(ctx context.Context, schema, name string) ([]mssql.Param, error)
	FunctionReturnType(ctx context.Context, schema, name string) (*mssql.ReturnType, error)
	ObjectDefinition(ctx context.Context, schema, name string) (string, bool, error)
	Version(ctx context.Context) (string, error)
}

// Analyzer enriches rendered documents and interprets search queries.
type Analyzer interface {
	Analyze(ctx context.Context, doc, objType string) (string, llm.Usage, float64, error)
	ClassifyIntent(ctx context.Context, query string) llm.Intent
	Check(ctx context.Context) error
}

// Index stores and searches finished documents.
type Index interface {
	Upsert(ctx context.Context, schema, name, objType, content string, metadata map[string]any) error
	Search(ctx context.Context, query string, limit int) ([]index.Result, error)
	Stats(ctx context.Context) index.Stats
	Clear(ctx context.Context) error
}

// BatchOptions controls a documentation batch run.
type BatchOptions struct {
	ObjectTypes     []string `json:"object_types"`
	Schemas         []string `json:"schemas"`
	BatchSize       int      `json:"batch_size"`
	IncludeAnalysis bool     `json:"include_analysis"`
	// ContinueOnError keeps the batch going past per-object failures.
	// Off by default: a failed object aborts the batch.
	ContinueOnError bool `json:"continue_on_error"`
}

// Documenter runs documentation batches and serves reads over the index.
// One batch runs at a time; concurrent batch requests are rejected with
// ErrBatchInProgress.
type Documenter struct {
	db          Database
	analyzer    Analyzer
	index       Index
	log         *slog.Logger
	stepTimeout time.Duration
	progress    *progressTracker

	mu      sync.Mutex
	running bool
}

// NewDocumenter wires a documenter. stepTimeout bounds each metadata
// query, enrichment call and index write; zero disables the bound.
func NewDocumenter(db Database, analyzer Analyzer, idx Index, log *slog.Logger, stepTimeout time.Duration) *Documenter {
	if log == nil {
		log = slog.Default()
	}
	return &Documenter{
		db:          db,
		analyzer:    analyzer,
		index:       idx,
		log:         log,
		stepTimeout: stepTimeout,
		progress:    newProgressTracker(),
	}
}

func (d *Documenter) acquire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return false
	}
	d.running = true
	return true
}

func (d *Documenter) release() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Running reports whether a batch is currently in flight.
func (d *Documenter) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// step derives a per-step context when a timeout is configured.
func (d *Documenter) step(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.stepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.stepTimeout)
}

// DocumentBatch runs a batch synchronously. It holds the single batch
// slot for its duration and returns ErrBatchInProgress when another
// batch already holds it.
func (d *Documenter) DocumentBatch(ctx context.Context, opts BatchOptions) error {
	if !d.acquire() {
		return ErrBatchInProgress
	}
	defer d.release()
	return d.runBatch(ctx, opts)
}

// StartBatch acquires the batch slot and runs the batch in the
// background, detached from the caller's request lifetime. Progress is
// observable through GetProgress.
func (d *Documenter) StartBatch(opts BatchOptions) error {
	if !d.acquire() {
		return ErrBatchInProgress
	}
	go func() {
		defer d.release()
		if err := d.runBatch(context.Background(), opts); err != nil {
			d.log.Error("batch documentation failed", "error", err)
		}
	}()
	return nil
}

func (d *Documenter) runBatch(ctx context.Context, opts BatchOptions) error {
	if len(opts.ObjectTypes) == 0 {
		opts.ObjectTypes = objectTypeTags[:]
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}

	batchID := d.progress.begin()
	log := d.log.With("batch_id", batchID)
	log.Info("starting batch documentation",
		"types", opts.ObjectTypes, "schemas", opts.Schemas, "batch_size", opts.BatchSize)

	stepCtx, cancel := d.step(ctx)
	objects, err := d.db.DiscoverObjects(stepCtx, opts.ObjectTypes, opts.Schemas)
	cancel()
	if err != nil {
		d.progress.fail()
		return fmt.Errorf("discover objects: %w", err)
	}
	d.progress.setTotal(len(objects))

	for i := 0; i < len(objects); i += opts.BatchSize {
		end := min(i+opts.BatchSize, len(objects))
		for _, obj := range objects[i:end] {
			if err := ctx.Err(); err != nil {
				d.progress.fail()
				return err
			}
			d.progress.setCurrentObject(obj.Schema + "." + obj.Name)

			if err := d.documentObject(ctx, obj, opts.IncludeAnalysis); err != nil {
				if opts.ContinueOnError {
					log.Warn("skipping object after failure",
						"object", obj.Schema+"."+obj.Name, "type", obj.Type, "error", err)
					d.progress.advance()
					continue
				}
				d.progress.fail()
				return fmt.Errorf("document %s %s.%s: %w", obj.Type, obj.Schema, obj.Name, err)
			}
			d.progress.advance()
		}
	}

	d.progress.complete()
	snap := d.progress.Snapshot()
	log.Info("batch documentation completed",
		"objects", snap.Current,
		"cost", fmt.Sprintf("%.4f", snap.Cost),
		"total_tokens", snap.Usage.TotalTokens)
	return nil
}

// documentObject renders, optionally enriches and stores one object.
// Enrichment failure degrades to an unenriched document; every other
// failure is the caller's to handle.
func (d *Documenter) documentObject(ctx context.Context, obj mssql.ObjectRef, includeAnalysis bool) error {
	objType, ok := ParseObjectType(obj.Type)
	if !ok {
		d.log.Warn("unsupported object type", "type", obj.Type, "object", obj.Schema+"."+obj.Name)
		return nil
	}
	d.log.Info("documenting object", "type", obj.Type, "object", obj.Schema+"."+obj.Name)

	stepCtx, cancel := d.step(ctx)
	content, metadata, err := documenterFor(objType, d.db).render(stepCtx, obj.Schema, obj.Name)
	cancel()
	if err != nil {
		return err
	}

	if includeAnalysis {
		stepCtx, cancel := d.step(ctx)
		narrative, usage, cost, err := d.analyzer.Analyze(stepCtx, content, obj.Type)
		cancel()
		if err != nil {
			d.log.Warn("analysis unavailable, storing without narrative",
				"object", obj.Schema+"."+obj.Name, "error", err)
		} else if narrative != "" {
			content += analysisMarker + narrative
			d.progress.addUsage(usage, cost)
		}
	}

	stepCtx, cancel = d.step(ctx)
	err = d.index.Upsert(stepCtx, obj.Schema, obj.Name, obj.Type, content, metadata)
	cancel()
	if err != nil {
		return fmt.Errorf("store documentation: %w", err)
	}
	return nil
}

// GetProgress returns the current batch progress snapshot.
func (d *Documenter) GetProgress() ProgressSnapshot {
	return d.progress.Snapshot()
}

// SearchDocumentation runs a plain similarity search over the index.
func (d *Documenter) SearchDocumentation(ctx context.Context, query string, limit int) ([]index.Result, error) {
	return d.index.Search(ctx, query, limit)
}

// SearchWithIntent interprets the query first and searches with the
// extracted search terms, filtering to the requested object type when
// the intent names one. Intent classification never fails; at worst the
// original query is searched unfiltered.
func (d *Documenter) SearchWithIntent(ctx context.Context, query string, limit int) (llm.Intent, []index.Result, error) {
	stepCtx, cancel := d.step(ctx)
	intent := d.analyzer.ClassifyIntent(stepCtx, query)
	cancel()

	results, err := d.index.Search(ctx, intent.SearchQuery, limit)
	if err != nil {
		return intent, nil, err
	}
	if intent.ObjectType != "" && intent.ObjectType != "any" {
		filtered := results[:0]
		for _, r := range results {
			if t, _ := r.Metadata["type"].(string); t == intent.ObjectType {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	return intent, results, nil
}

// RelatedObjects finds documents most similar to the named object,
// excluding the object itself.
func (d *Documenter) RelatedObjects(ctx context.Context, schema, name string, limit int) ([]index.Result, error) {
	if limit <= 0 {
		limit = 5
	}
	results, err := d.index.Search(ctx, schema+"."+name, limit+1)
	if err != nil {
		return nil, err
	}
	related := results[:0]
	for _, r := range results {
		if r.ID == schema+"."+name {
			continue
		}
		related = append(related, r)
	}
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

// GenerateDocumentationSummary returns the stored documentation for an
// object with the analysis section stripped, or a fixed message when the
// object has no documentation.
func (d *Documenter) GenerateDocumentationSummary(ctx context.Context, schema, name, objType string) (string, error) {
	results, err := d.index.Search(ctx, fmt.Sprintf("%s.%s %s", schema, name, objType), 1)
	if err != nil {
		return "", fmt.Errorf("summary search: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No documentation found for %s %s.%s", objType, schema, name), nil
	}
	content := results[0].Content
	if i := strings.Index(content, analysisMarker); i >= 0 {
		content = content[:i]
	}
	return content, nil
}

// ConnectionStatus reports the outcome of TestConnection.
type ConnectionStatus struct {
	Connected       bool   `json:"connected"`
	DatabaseVersion string `json:"database_version,omitempty"`
	LLMStatus       string `json:"llm_status,omitempty"`
	Error           string `json:"error,omitempty"`
}

// TestConnection verifies the database answers @@VERSION and, best
// effort, that the enrichment provider responds. An LLM failure does not
// make the connection test fail.
func (d *Documenter) TestConnection(ctx context.Context) ConnectionStatus {
	stepCtx, cancel := d.step(ctx)
	version, err := d.db.Version(stepCtx)
	cancel()
	if err != nil {
		d.log.Error("connection test failed", "error", err)
		return ConnectionStatus{Error: err.Error()}
	}

	status := ConnectionStatus{Connected: true, DatabaseVersion: version, LLMStatus: "ok"}
	stepCtx, cancel = d.step(ctx)
	if err := d.analyzer.Check(stepCtx); err != nil {
		d.log.Warn("llm connection test failed", "error", err)
		status.LLMStatus = err.Error()
	}
	cancel()
	return status
}

// Stats reports per-partition document counts from the index.
func (d *Documenter) Stats(ctx context.Context) index.Stats {
	return d.index.Stats(ctx)
}

// ClearDocumentation drops all stored documentation and resets progress.
func (d *Documenter) ClearDocumentation(ctx context.Context) error {
	if err := d.index.Clear(ctx); err != nil {
		return err
	}
	d.progress.reset()
	return nil
}
