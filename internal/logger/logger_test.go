package logger

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
}

func TestNew_FileSink(t *testing.T) {
	logFile := t.TempDir() + "/pipeline.log"
	log := New("production", logFile)

	log.Info().Msg("to file only")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "to file only") {
		t.Errorf("Expected log file to contain message, got: %s", data)
	}
}

func TestWithContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)
	ctx := WithContext(context.Background(), log)

	if ctx.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("roundtrip")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	// Should not panic, should return a usable logger.
	log.Debug().Msg("default logger works")
}
