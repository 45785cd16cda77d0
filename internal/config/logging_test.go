package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("batch started", "total", 12)

	t.Run("text goes to stderr", func(t *testing.T) {
		out := stderr.String()
		if !strings.Contains(out, "batch started") || !strings.Contains(out, "total=12") {
			t.Errorf("unexpected stderr output: %q", out)
		}
	})

	t.Run("json goes to file", func(t *testing.T) {
		var entry map[string]any
		if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
			t.Fatalf("file output is not JSON: %v", err)
		}
		if entry["msg"] != "batch started" {
			t.Errorf("msg = %v", entry["msg"])
		}
		if entry["total"] != float64(12) {
			t.Errorf("total = %v", entry["total"])
		}
	})

	t.Run("level filter applies to both", func(t *testing.T) {
		stderr.Reset()
		file.Reset()
		logger.Debug("noisy detail")
		if stderr.Len() != 0 || file.Len() != 0 {
			t.Error("debug output should be filtered at info level")
		}
	})
}
