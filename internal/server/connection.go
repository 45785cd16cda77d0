package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dbscribe/dbscribe/internal/mssql"
)

// savedConnection is the shape persisted to connection.json. The password
// is never written to disk; reconnecting after a restart prompts for it.
type savedConnection struct {
	Server   string `json:"server"`
	Database string `json:"database"`
	User     string `json:"user,omitempty"`
	Trusted  bool   `json:"trusted_connection,omitempty"`
}

func connectionFile(dataDir string) string {
	return filepath.Join(dataDir, "connection.json")
}

// saveConnection records the last successful connection settings so the
// UI and CLI can offer them as defaults.
func saveConnection(dataDir string, cfg mssql.Config) error {
	if dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(savedConnection{
		Server:   cfg.Server,
		Database: cfg.Database,
		User:     cfg.User,
		Trusted:  cfg.Trusted,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	if err := os.WriteFile(connectionFile(dataDir), data, 0o600); err != nil {
		return fmt.Errorf("write connection file: %w", err)
	}
	return nil
}

// loadConnection reads the saved connection settings. The boolean is
// false when none have been saved.
func loadConnection(dataDir string) (savedConnection, bool, error) {
	if dataDir == "" {
		return savedConnection{}, false, nil
	}
	data, err := os.ReadFile(connectionFile(dataDir))
	if os.IsNotExist(err) {
		return savedConnection{}, false, nil
	}
	if err != nil {
		return savedConnection{}, false, fmt.Errorf("read connection file: %w", err)
	}
	var saved savedConnection
	if err := json.Unmarshal(data, &saved); err != nil {
		return savedConnection{}, false, fmt.Errorf("parse connection file: %w", err)
	}
	return saved, true, nil
}
