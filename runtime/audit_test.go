package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestAuditLoggerEmit(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(&buf)

	logger.Emit(AuditEvent{
		Event:   AuditAccountResult,
		RunID:   "abc123",
		Account: "138****0000",
		Fields:  map[string]any{"success": true},
	})

	line := strings.TrimSpace(buf.String())
	var event AuditEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		t.Fatalf("invalid JSON: %v\nline: %s", err, line)
	}

	if event.Event != AuditAccountResult {
		t.Errorf("event = %q, want %q", event.Event, AuditAccountResult)
	}
	if event.RunID != "abc123" {
		t.Errorf("run_id = %q, want %q", event.RunID, "abc123")
	}
	if event.Account != "138****0000" {
		t.Errorf("account = %q", event.Account)
	}
	if event.Timestamp == "" {
		t.Error("timestamp should be auto-set")
	}
	if event.Fields["success"] != true {
		t.Errorf("fields.success = %v, want true", event.Fields["success"])
	}
}

func TestAuditLoggerTimestampPreserved(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(&buf)

	logger.Emit(AuditEvent{
		Timestamp: "2024-01-01T00:00:00Z",
		Event:     AuditRunStart,
	})

	var event AuditEvent
	json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &event) //nolint:errcheck
	if event.Timestamp != "2024-01-01T00:00:00Z" {
		t.Errorf("timestamp should be preserved, got %q", event.Timestamp)
	}
}

func TestAuditLoggerNilIsSilent(t *testing.T) {
	var logger *AuditLogger
	logger.Emit(AuditEvent{Event: AuditRunEnd}) // must not panic
}

func TestAuditLoggerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Emit(AuditEvent{
				Event:  AuditTokenRefresh,
				Fields: map[string]any{"n": n},
			})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 50 {
		t.Fatalf("expected 50 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var event AuditEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Errorf("line %d: invalid JSON: %v", i, err)
		}
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RunIDFromContext(ctx); got != "" {
		t.Errorf("empty context should return empty run id, got %q", got)
	}
	ctx = WithRunID(ctx, "run-1")
	if got := RunIDFromContext(ctx); got != "run-1" {
		t.Errorf("RunIDFromContext() = %q, want run-1", got)
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if len(id) != 16 {
		t.Errorf("expected 16-char id, got %q", id)
	}
	if id == GenerateID() {
		t.Error("two generated ids should differ")
	}
}
