package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"daemonize/internal/logging"
)

func newLogFile(t *testing.T) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "daemon.log")
	return logPath, func() string {
		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(data)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath, read := newLogFile(t)

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content := read()
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if !strings.Contains(content, " INFO  message without caller") {
		t.Fatalf("expected console line, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath, read := newLogFile(t)

	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	if content := read(); !strings.Contains(content, "(logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndFields(t *testing.T) {
	logPath, read := newLogFile(t)

	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "daemonize").With(
		logging.String(logging.FieldRunID, "1b4e28ba-2fa1-11d2-883f-0016d3cca427"),
	)
	logger.Info("stage complete",
		logging.String(logging.FieldStage, "daemon"),
		logging.Int(logging.FieldPID, 42),
		logging.Error(errors.New("boom happened")),
		slog.Group("pid_file", logging.String("path", "/run/x.pid")),
	)

	content := read()
	for _, want := range []string{
		"[daemon 1b4e28ba] daemonize: stage complete",
		" pid=42",
		`error="boom happened"`,
		"pid_file.path=/run/x.pid",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}

func TestJSONLoggerWritesStructuredRecords(t *testing.T) {
	logPath, read := newLogFile(t)

	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("pid file locked", logging.String(logging.FieldRunID, "run-1"))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected level warn, got %v", record["level"])
	}
	if record["msg"] != "pid file locked" {
		t.Fatalf("unexpected msg %v", record["msg"])
	}
	if record[logging.FieldRunID] != "run-1" {
		t.Fatalf("unexpected run id %v", record[logging.FieldRunID])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts field, got %v", record)
	}
}

func TestAutoFormatUsesJSONForFiles(t *testing.T) {
	logPath, read := newLogFile(t)

	logger, err := logging.New(logging.Options{Format: "auto", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")

	if content := strings.TrimSpace(read()); !strings.HasPrefix(content, "{") {
		t.Fatalf("expected JSON output for file destinations, got %q", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	logPath, read := newLogFile(t)

	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("dropped")
	logger.Error("kept")

	content := read()
	if strings.Contains(content, "dropped") || !strings.Contains(content, "kept") {
		t.Fatalf("unexpected filtering result %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if logging.ValidFormat("xml") {
		t.Fatal("expected xml to be rejected")
	}
	if !logging.ValidFormat("JSON") {
		t.Fatal("expected JSON to be accepted")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected no-op logger to be disabled")
	}
	logging.NewComponentLogger(nil, "x").Error("ignored")
}
