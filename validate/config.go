// Package validate checks the CONFIG payload before a run starts.
package validate

import (
	_ "embed"
	"fmt"
	"net/url"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Mora-na/mimotions/types"
)

//go:embed schema.json
var schemaJSON string

var schema = gojsonschema.NewStringLoader(schemaJSON)

// ValidationResult holds errors and warnings from config validation.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Merge appends other's findings to r.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ValidateRaw checks the decoded payload against the embedded JSON schema.
func ValidateRaw(raw map[string]any) *ValidationResult {
	r := &ValidationResult{}
	res, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("schema validation failed: %v", err))
		return r
	}
	for _, e := range res.Errors() {
		r.Errors = append(r.Errors, e.String())
	}
	return r
}

// ValidateConfig runs semantic checks that the schema cannot express.
// A USER/PWD count mismatch is left to the orchestrator.
func ValidateConfig(cfg *types.Config) *ValidationResult {
	r := &ValidationResult{}

	for i, u := range cfg.Users {
		if u == "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("USER entry %d is empty", i+1))
		}
	}

	// Step values only ever fail the accounts that use them.
	for _, err := range []error{cfg.MinStepErr, cfg.MaxStepErr} {
		if err != nil {
			r.Warnings = append(r.Warnings, err.Error()+"; accounts without their own value will fail")
		}
	}
	if cfg.MinStep != nil && *cfg.MinStep < 0 {
		r.Warnings = append(r.Warnings, "MIN_STEP is negative")
	}
	if cfg.MinStep != nil && cfg.MaxStep != nil && *cfg.MinStep > *cfg.MaxStep {
		r.Warnings = append(r.Warnings, fmt.Sprintf("MIN_STEP %d exceeds MAX_STEP %d; accounts without STEP_RANGES will fail", *cfg.MinStep, *cfg.MaxStep))
	}

	known := make(map[string]bool, len(cfg.Users))
	for _, u := range cfg.Users {
		known[u] = true
	}
	accounts := make([]string, 0, len(cfg.StepRanges))
	for a := range cfg.StepRanges {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	for _, a := range accounts {
		if !known[a] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("STEP_RANGES has entry for unknown account %q", a))
		}
		sr := cfg.StepRanges[a]
		for _, err := range []error{sr.MinErr, sr.MaxErr} {
			if err != nil {
				r.Warnings = append(r.Warnings, err.Error()+"; this account will fail")
			}
		}
		if sr.MinStep != nil && sr.MaxStep != nil && *sr.MinStep > *sr.MaxStep {
			r.Warnings = append(r.Warnings, fmt.Sprintf("STEP_RANGES[%s]: MIN_STEP exceeds MAX_STEP", a))
		}
	}

	if cfg.SleepGap < 0 {
		r.Errors = append(r.Errors, "SLEEP_GAP must not be negative")
	}
	if cfg.MaxWorkers < 0 {
		r.Errors = append(r.Errors, "MAX_WORKERS must not be negative")
	}
	if cfg.RequestsPerSecond < 0 {
		r.Errors = append(r.Errors, "REQUEST_RPS must not be negative")
	}
	if h := cfg.Push.Hour; h != nil && (*h < 0 || *h > 23) {
		r.Errors = append(r.Errors, fmt.Sprintf("PUSH_PLUS_HOUR %d must be between 0 and 23", *h))
	}
	if cfg.Push.Max < 0 {
		r.Errors = append(r.Errors, "PUSH_PLUS_MAX must not be negative")
	}
	if _, err := cfg.Location(); err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("TIMEZONE %q is not a known time zone", cfg.Timezone))
	}
	if cfg.PushgatewayURL != "" {
		if u, err := url.Parse(cfg.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("PUSHGATEWAY_URL %q is not an absolute URL", cfg.PushgatewayURL))
		}
	}

	return r
}
