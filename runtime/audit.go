package runtime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event type constants.
const (
	AuditRunStart        = "run_start"
	AuditRunEnd          = "run_end"
	AuditAccountResult   = "account_result"
	AuditTokenRefresh    = "token_refresh"
	AuditTokensPersisted = "tokens_persisted"
)

// AuditEvent is a single structured audit record emitted as NDJSON.
type AuditEvent struct {
	Timestamp string         `json:"ts"`
	Event     string         `json:"event"`
	RunID     string         `json:"run_id,omitempty"`
	Account   string         `json:"account,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// AuditLogger writes structured NDJSON audit events to an io.Writer.
// A nil *AuditLogger is valid and drops every event.
type AuditLogger struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewAuditLogger creates a new AuditLogger writing to w.
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{w: w, now: time.Now}
}

// Emit writes an audit event as a single NDJSON line. If Timestamp is empty
// it is set to the current time in RFC3339 format.
func (a *AuditLogger) Emit(event AuditEvent) {
	if a == nil || a.w == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = a.now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	a.w.Write(data) //nolint:errcheck
	a.mu.Unlock()
}

type runIDKey struct{}

// WithRunID stores the run correlation ID in the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext retrieves the run ID from the context.
// Returns "" if not set.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateID produces a 16-character hex random ID using crypto/rand.
func GenerateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b)
}
