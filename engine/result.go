// Package engine runs every configured account through token acquisition
// and step submission, then aggregates, persists and reports the outcome.
package engine

import (
	"fmt"
	"time"

	"github.com/Mora-na/mimotions/notify"
)

// Run modes.
const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
)

// Result is the outcome of one account.
type Result struct {
	// Account is the identity as configured.
	Account string
	// Masked is Account desensitised for logs and history.
	Masked  string
	Success bool
	Message string
	// Stage is the token cascade stage that produced the app token, if any.
	Stage   string
	Elapsed time.Duration
}

// Report aggregates one execution.
type Report struct {
	RunID      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
	Succeeded  int
	// Persisted reports whether the credential file was written.
	Persisted bool
	// Notified reports whether a push notification was delivered.
	Notified bool
}

// Total returns the number of accounts processed.
func (r *Report) Total() int { return len(r.Results) }

// Failed returns the number of accounts that did not succeed.
func (r *Report) Failed() int { return r.Total() - r.Succeeded }

// Summary is the one-line outcome shown in logs and notifications.
func (r *Report) Summary() string { return notify.Summary(r.Total(), r.Succeeded) }

// ConfigError reports configuration that prevents any account from running.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func entries(results []Result) []notify.Entry {
	out := make([]notify.Entry, len(results))
	for i, r := range results {
		out[i] = notify.Entry{Account: r.Account, Success: r.Success, Message: r.Message}
	}
	return out
}
