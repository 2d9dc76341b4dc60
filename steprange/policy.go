// Package steprange picks the step bounds for an account from the time of day.
package steprange

import (
	"fmt"
	"time"

	"github.com/Mora-na/mimotions/types"
)

// Cutoff is the local time of day (minutes after midnight) at which the
// range switches from the lower to the upper half.
const Cutoff = 21*60 + 30

// Policy resolves per-account step bounds.
type Policy struct {
	global     types.StepRange
	perAccount map[string]types.StepRange
}

// New builds a Policy from cfg.
func New(cfg *types.Config) *Policy {
	return &Policy{
		global: types.StepRange{
			MinStep: cfg.MinStep, MaxStep: cfg.MaxStep,
			MinErr: cfg.MinStepErr, MaxErr: cfg.MaxStepErr,
		},
		perAccount: cfg.StepRanges,
	}
}

// Bounds returns the configured minimum and maximum for account: the
// account's own value, else the global value, else the default. A value
// that resolves to a malformed entry is an error.
func (p *Policy) Bounds(account string) (minStep, maxStep int, err error) {
	own := p.perAccount[account]
	if minStep, err = pick(own.MinStep, own.MinErr, p.global.MinStep, p.global.MinErr, types.DefaultMinStep); err != nil {
		return 0, 0, err
	}
	if maxStep, err = pick(own.MaxStep, own.MaxErr, p.global.MaxStep, p.global.MaxErr, types.DefaultMaxStep); err != nil {
		return 0, 0, err
	}
	return minStep, maxStep, nil
}

// Range returns the bounds to draw from at now: the lower half of the
// configured range before Cutoff and the upper half from Cutoff on. now
// should already be in the run's time zone.
func (p *Policy) Range(now time.Time, account string) (lo, hi int, err error) {
	minStep, maxStep, err := p.Bounds(account)
	if err != nil {
		return 0, 0, err
	}
	if minStep > maxStep {
		return 0, 0, fmt.Errorf("MIN_STEP %d is greater than MAX_STEP %d", minStep, maxStep)
	}
	mid := (minStep + maxStep) / 2
	if now.Hour()*60+now.Minute() < Cutoff {
		return minStep, mid, nil
	}
	return mid, maxStep, nil
}

func pick(own *int, ownErr error, global *int, globalErr error, def int) (int, error) {
	switch {
	case own != nil:
		return *own, nil
	case ownErr != nil:
		return 0, ownErr
	case global != nil:
		return *global, nil
	case globalErr != nil:
		return 0, globalErr
	}
	return def, nil
}
