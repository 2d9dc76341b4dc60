package steprange

import (
	"errors"
	"testing"
	"time"

	"github.com/Mora-na/mimotions/types"
)

func intp(v int) *int { return &v }

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 17, hour, minute, 0, 0, time.FixedZone("CST", 8*3600))
}

func TestRangeHalvesAroundCutoff(t *testing.T) {
	p := New(&types.Config{MinStep: intp(18000), MaxStep: intp(25000)})

	tests := []struct {
		name   string
		now    time.Time
		lo, hi int
	}{
		{"evening before cutoff", at(20, 0), 18000, 21500},
		{"one minute before cutoff", at(21, 29), 18000, 21500},
		{"at cutoff", at(21, 30), 21500, 25000},
		{"night after cutoff", at(22, 0), 21500, 25000},
		{"early morning", at(6, 15), 18000, 21500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, err := p.Range(tt.now, "13800000000")
			if err != nil {
				t.Fatalf("Range() error: %v", err)
			}
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("Range() = (%d, %d), want (%d, %d)", lo, hi, tt.lo, tt.hi)
			}
		})
	}
}

func TestBoundsPrecedence(t *testing.T) {
	cfg := &types.Config{
		MinStep: intp(10000),
		StepRanges: map[string]types.StepRange{
			"13800000000": {MinStep: intp(30000), MaxStep: intp(40000)},
			"13900000000": {MaxStep: intp(12000)},
		},
	}
	p := New(cfg)

	tests := []struct {
		account  string
		min, max int
	}{
		{"13800000000", 30000, 40000},                     // account override wins
		{"13900000000", 10000, 12000},                     // partial override falls back to global
		{"someone@mail.com", 10000, types.DefaultMaxStep}, // global then default
	}
	for _, tt := range tests {
		lo, hi, err := p.Bounds(tt.account)
		if err != nil {
			t.Fatalf("Bounds(%q) error: %v", tt.account, err)
		}
		if lo != tt.min || hi != tt.max {
			t.Errorf("Bounds(%q) = (%d, %d), want (%d, %d)", tt.account, lo, hi, tt.min, tt.max)
		}
	}
}

func TestDefaults(t *testing.T) {
	lo, hi, err := New(&types.Config{}).Bounds("anyone")
	if err != nil {
		t.Fatal(err)
	}
	if lo != 18000 || hi != 25000 {
		t.Errorf("defaults = (%d, %d), want (18000, 25000)", lo, hi)
	}
}

func TestInvertedRangeIsAnError(t *testing.T) {
	p := New(&types.Config{MinStep: intp(30000), MaxStep: intp(20000)})
	if _, _, err := p.Range(at(12, 0), "x"); err == nil {
		t.Error("expected error for MIN_STEP > MAX_STEP")
	}
}

func TestMalformedBoundFailsOnlyAccountsUsingIt(t *testing.T) {
	bad := errors.New("STEP_RANGES.a.MIN_STEP must be an integer, got \"abc\"")
	globalBad := errors.New("MAX_STEP must be an integer, got \"lots\"")
	p := New(&types.Config{
		MaxStepErr: globalBad,
		StepRanges: map[string]types.StepRange{
			"a": {MinErr: bad, MaxStep: intp(20000)},
			"b": {MinStep: intp(100), MaxStep: intp(200)},
		},
	})

	tests := []struct {
		account string
		want    error
	}{
		{"a", bad},
		{"b", nil},       // own values shadow the malformed global
		{"c", globalBad}, // falls through to the malformed global
	}
	for _, tt := range tests {
		_, _, err := p.Range(at(12, 0), tt.account)
		if !errors.Is(err, tt.want) {
			t.Errorf("Range(%q) error = %v, want %v", tt.account, err, tt.want)
		}
	}
}
