package runtime

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, false)

	logger.Info("account finished", map[string]any{"account": "abc***xyz", "success": true})

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if line["message"] != "account finished" {
		t.Errorf("message = %v", line["message"])
	}
	if line["level"] != "info" {
		t.Errorf("level = %v", line["level"])
	}
	if line["account"] != "abc***xyz" {
		t.Errorf("account = %v", line["account"])
	}
}

func TestJSONLoggerVerbosity(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLogger(&buf, false).Debug("hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("debug should be suppressed without verbose, got %q", buf.String())
	}

	NewJSONLogger(&buf, true).Debug("shown", nil)
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug should be emitted with verbose, got %q", buf.String())
	}
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(&buf, false).Warn("token file unreadable", map[string]any{"path": "x.data"})
	out := buf.String()
	if !strings.Contains(out, "token file unreadable") || !strings.Contains(out, "path=x.data") {
		t.Errorf("unexpected console output: %q", out)
	}
}
