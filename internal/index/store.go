// Package index provides the searchable document index: SQLite storage
// partitioned by object type, with embedding-based distance ranking.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
	"golang.org/x/sync/errgroup"

	"github.com/dbscribe/dbscribe/internal/metrics"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// partitions maps object-type tags to their storage partition, in
// processing order.
var partitions = []struct {
	objType string
	table   string
}{
	{"table", "tables"},
	{"view", "views"},
	{"procedure", "procedures"},
	{"function", "functions"},
}

func partitionFor(objType string) (string, error) {
	for _, p := range partitions {
		if p.objType == objType {
			return p.table, nil
		}
	}
	return "", fmt.Errorf("unknown object type %q", objType)
}

// Result is a single search hit. Lower distance means a closer match.
type Result struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Distance  float64        `json:"distance"`
	Partition string         `json:"partition"`
}

// Stats reports per-partition document counts.
type Stats struct {
	Table     int `json:"table"`
	View      int `json:"view"`
	Procedure int `json:"procedure"`
	Function  int `json:"function"`
}

// Store is the SQLite-backed document index. All operations are safe for
// concurrent readers; writes are serialized by SQLite.
type Store struct {
	db       *sql.DB
	embedder Embedder
	metrics  *metrics.Collector
	mu       sync.Mutex // serializes Clear against writers
}

// Open opens (or creates) the index at path and ensures all partitions
// exist. Use ":memory:" for an ephemeral index. The metrics collector may
// be nil.
func Open(path string, embedder Embedder, collector *metrics.Collector) (*Store, error) {
	registerVectorFunctions()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// table-locked errors from concurrent writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, embedder: embedder, metrics: collector}
	ctx := context.Background()
	for _, p := range partitions {
		if err := s.createPartition(ctx, p.table); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the index.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createPartition(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			id          TEXT PRIMARY KEY,
			schema_name TEXT NOT NULL,
			object_name TEXT NOT NULL,
			content     TEXT NOT NULL,
			metadata    TEXT NOT NULL,
			embedding   BLOB
		)`, table))
	if err != nil {
		return fmt.Errorf("create partition %s: %w", table, err)
	}
	return nil
}

func (s *Store) dropPartition(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table)); err != nil {
		return fmt.Errorf("drop partition %s: %w", table, err)
	}
	return nil
}

// Upsert stores documentation for an object, replacing any prior record
// with the same (schema, name) in the partition. The stored metadata
// always carries schema, name and type alongside the caller's fields.
func (s *Store) Upsert(ctx context.Context, schema, name, objType, content string, metadata map[string]any) error {
	table, err := partitionFor(objType)
	if err != nil {
		return err
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	merged := map[string]any{
		"schema": schema,
		"name":   name,
		"type":   objType,
	}
	for k, v := range metadata {
		merged[k] = v
	}
	metaJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	start := time.Now()
	s.mu.Lock()
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %q (id, schema_name, object_name, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_name = excluded.schema_name,
			object_name = excluded.object_name,
			content     = excluded.content,
			metadata    = excluded.metadata,
			embedding   = excluded.embedding`, table),
		schema+"."+name, schema, name, content, string(metaJSON), EncodeEmbedding(embedding))
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpIndexUpsert, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

// Search embeds the query once and ranks documents across every non-empty
// partition by ascending distance, truncated to limit. Empty partitions
// are skipped. Results may under-fill limit when fewer documents match.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryBlob := EncodeEmbedding(embedding)

	start := time.Now()
	var (
		resMu   sync.Mutex
		results []Result
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range partitions {
		g.Go(func() error {
			partial, err := s.searchPartition(gctx, p.table, queryBlob, limit)
			if err != nil {
				return err
			}
			resMu.Lock()
			results = append(results, partial...)
			resMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > limit {
		results = results[:limit]
	}

	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpIndexSearch, time.Since(start))
	}
	return results, nil
}

func (s *Store) searchPartition(ctx context.Context, table string, queryBlob []byte, limit int) ([]Result, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&count); err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}
	if count == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, metadata, vec_l2(embedding, ?) AS distance
		FROM %q
		ORDER BY distance ASC
		LIMIT ?`, table), queryBlob, limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r        Result
			metaJSON string
		)
		if err := rows.Scan(&r.ID, &r.Content, &metaJSON, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		r.Partition = table
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats returns per-partition document counts. Statistics are a
// best-effort diagnostic: on any failure all counts come back zero with
// no error.
func (s *Store) Stats(ctx context.Context) Stats {
	var stats Stats
	dests := []*int{&stats.Table, &stats.View, &stats.Procedure, &stats.Function}
	for i, p := range partitions {
		if err := s.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %q`, p.table)).Scan(dests[i]); err != nil {
			return Stats{}
		}
	}
	return stats
}

// Clear drops and recreates every partition. If the drop phase fails
// partway, Clear recreates all partitions before re-signaling the
// original error so no partition is left permanently missing; if that
// recovery also fails, the returned error names both failures.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clearErr error
	for _, p := range partitions {
		if clearErr = s.dropPartition(ctx, p.table); clearErr != nil {
			break
		}
		if clearErr = s.createPartition(ctx, p.table); clearErr != nil {
			break
		}
	}
	if clearErr == nil {
		return nil
	}

	// Recovery: make sure every partition exists before surfacing the error.
	for _, p := range partitions {
		if err := s.createPartition(ctx, p.table); err != nil {
			return fmt.Errorf("clear index: %w; additionally, recovery failed: %v", clearErr, err)
		}
	}
	return fmt.Errorf("clear index: %w", clearErr)
}
