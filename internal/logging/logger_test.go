package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"Trace", LevelTrace},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerFiltersAndLabelsTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected info output: %q", buf.String())
	}

	buf.Reset()
	logger = NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "stage")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Fatalf("expected TRACE label, got %q", buf.String())
	}
}

func TestDecisionLog(t *testing.T) {
	dir := t.TempDir()
	if NewDecisionLog(dir, "info") != nil {
		t.Fatal("expected no decision log at info level")
	}

	var nilLog *DecisionLog
	nilLog.Log(map[string]any{"tick": 1})
	if err := nilLog.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}

	log := NewDecisionLog(dir, "debug")
	if log == nil {
		t.Fatal("expected decision log at debug level")
	}
	event := map[string]any{"tick": 3, "agent": "mom", "action": "forward"}
	log.Log(event)
	log.Log(map[string]any{"tick": 4})
	if _, ok := event["time"]; ok {
		t.Fatal("caller map was modified")
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "decisions.jsonl"))
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()
	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 || lines[0]["action"] != "forward" || lines[0]["time"] == nil {
		t.Fatalf("unexpected trace contents: %v", lines)
	}
}
