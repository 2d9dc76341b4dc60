// Package types holds the run configuration assembled once at startup.
package types

import (
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database.
)

// Defaults applied when an option is absent.
const (
	DefaultMinStep        = 18000
	DefaultMaxStep        = 25000
	DefaultSleepGap       = 5 * time.Second
	DefaultPushMax        = 30
	DefaultTimezone       = "Asia/Shanghai"
	DefaultRequestTimeout = 15 * time.Second
)

// Config is the explicit form of the CONFIG payload. Option names in
// comments are the payload keys.
type Config struct {
	Users     []string // USER, '#'-separated
	Passwords []string // PWD, '#'-separated

	MinStep    *int                 // MIN_STEP
	MaxStep    *int                 // MAX_STEP
	MinStepErr error                // MIN_STEP present but not an integer
	MaxStepErr error                // MAX_STEP present but not an integer
	StepRanges map[string]StepRange // STEP_RANGES, keyed by configured identity

	SleepGap      time.Duration // SLEEP_GAP, seconds
	UseConcurrent bool          // USE_CONCURRENT
	MaxWorkers    int           // MAX_WORKERS, 0 picks a default

	Push Push

	Timezone          string        // TIMEZONE
	TokenFile         string        // TOKEN_FILE
	RequestTimeout    time.Duration // REQUEST_TIMEOUT, seconds
	RequestsPerSecond float64       // REQUEST_RPS
	HistoryDB         string        // HISTORY_DB
	PushgatewayURL    string        // PUSHGATEWAY_URL
}

// StepRange is a per-account override of the step bounds. MinErr and
// MaxErr hold a value that is present but not an integer; accounts that
// resolve to it fail instead of falling back.
type StepRange struct {
	MinStep *int // MIN_STEP
	MaxStep *int // MAX_STEP
	MinErr  error
	MaxErr  error
}

// Push configures the notification channel.
type Push struct {
	Token string // PUSH_PLUS_TOKEN; empty or "NO" disables delivery
	Hour  *int   // PUSH_PLUS_HOUR; deliver only during this local hour
	Max   int    // PUSH_PLUS_MAX; at or above this many accounts, details are omitted
}

// Enabled reports whether a push token is configured.
func (p Push) Enabled() bool {
	return p.Token != "" && p.Token != "NO"
}

// Location resolves Timezone, falling back to DefaultTimezone.
func (c *Config) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	return time.LoadLocation(name)
}
