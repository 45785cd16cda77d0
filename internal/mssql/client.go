// Package mssql provides SQL Server metadata introspection for the
// documentation pipeline.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/dbscribe/dbscribe/internal/metrics"
)

// Config holds SQL Server connection configuration.
type Config struct {
	Server   string
	Database string
	User     string
	Password string
	Trusted  bool
}

// ConnectionString builds a go-mssqldb connection string. With Trusted set,
// integrated authentication is used and credentials are omitted.
func (c Config) ConnectionString() string {
	parts := []string{
		"server=" + c.Server,
		"database=" + c.Database,
	}
	if c.Trusted {
		parts = append(parts, "trusted_connection=yes")
	} else {
		parts = append(parts, "user id="+c.User, "password="+c.Password)
	}
	return strings.Join(parts, ";")
}

// Client wraps a SQL Server connection pool. Queries acquire a pooled
// connection per call and release it when the rows are drained, so no
// single connection is held for the lifetime of a batch.
type Client struct {
	db      *sql.DB
	cfg     Config
	metrics *metrics.Collector
}

// NewClient opens a connection pool and verifies connectivity.
// The metrics collector may be nil.
func NewClient(ctx context.Context, cfg Config, collector *metrics.Collector) (*Client, error) {
	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}

	return &Client{db: db, cfg: cfg, metrics: collector}, nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Database returns the configured database name.
func (c *Client) Database() string {
	return c.cfg.Database
}

// Version returns the server version string, for connection tests.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&version); err != nil {
		return "", fmt.Errorf("query server version: %w", err)
	}
	return version, nil
}

// record tracks query timing when a collector is configured.
func (c *Client) record(start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordTiming(metrics.OpMetadataQuery, time.Since(start))
	}
}
