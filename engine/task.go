package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Mora-na/mimotions/auth"
	"github.com/Mora-na/mimotions/credstore"
	coreruntime "github.com/Mora-na/mimotions/runtime"
	"github.com/Mora-na/mimotions/steprange"
)

// TokenSource yields an app token for an account. *auth.Manager implements it.
type TokenSource interface {
	ObtainAppToken(ctx context.Context, acct auth.Account, stored credstore.Record, found bool) auth.Outcome
}

// Submitter uploads a step count. *zepp.Client implements it.
type Submitter interface {
	SubmitSteps(ctx context.Context, steps int, appToken, userID string) (string, error)
}

// TaskRunner processes a single account.
type TaskRunner struct {
	tokens    TokenSource
	submitter Submitter
	store     *credstore.Store
	policy    *steprange.Policy
	clock     clockwork.Clock
	loc       *time.Location
	logger    coreruntime.Logger

	// draw returns a uniform integer in [lo, hi].
	draw func(lo, hi int) int
}

// TaskConfig wires a TaskRunner.
type TaskConfig struct {
	Tokens    TokenSource
	Submitter Submitter
	Store     *credstore.Store
	Policy    *steprange.Policy
	Clock     clockwork.Clock
	Location  *time.Location
	Logger    coreruntime.Logger
}

// NewTaskRunner creates a TaskRunner from cfg.
func NewTaskRunner(cfg TaskConfig) *TaskRunner {
	t := &TaskRunner{
		tokens:    cfg.Tokens,
		submitter: cfg.Submitter,
		store:     cfg.Store,
		policy:    cfg.Policy,
		clock:     cfg.Clock,
		loc:       cfg.Location,
		logger:    cfg.Logger,
		draw: func(lo, hi int) int {
			return lo + rand.IntN(hi-lo+1)
		},
	}
	if t.clock == nil {
		t.clock = clockwork.NewRealClock()
	}
	if t.loc == nil {
		t.loc = time.Local
	}
	if t.logger == nil {
		t.logger = coreruntime.NopLogger{}
	}
	if t.store == nil {
		t.store = credstore.NewStore(nil)
	}
	return t
}

// Run processes the account at position idx (0-based) of total. It never
// panics and always returns a Result.
func (t *TaskRunner) Run(ctx context.Context, idx, total int, identity, secret string) (res Result) {
	start := t.clock.Now()
	res = Result{Account: identity, Masked: auth.Desensitize(identity)}
	fields := map[string]any{
		"progress": fmt.Sprintf("[%d/%d]", idx+1, total),
		"account":  res.Masked,
	}

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Message = fmt.Sprintf("execution fault: %v", r)
		}
		res.Elapsed = t.clock.Since(start)
		fields["success"] = res.Success
		fields["message"] = res.Message
		fields["elapsed_ms"] = res.Elapsed.Milliseconds()
		if res.Success {
			t.logger.Info("account processed", fields)
		} else {
			t.logger.Warn("account failed", fields)
		}
	}()

	lo, hi, err := t.policy.Range(start.In(t.loc), identity)
	if err != nil {
		res.Message = fmt.Sprintf("execution fault: %v", err)
		return res
	}

	acct := auth.NewAccount(identity, secret)
	if !acct.Valid() {
		res.Message = "invalid account or password configuration"
		return res
	}

	stored, found := t.store.Get(acct.Key)
	out := t.tokens.ObtainAppToken(ctx, acct, stored, found)
	if out.Changed {
		t.store.Put(acct.Key, out.Record)
	}
	if len(out.Diagnostics) > 0 {
		fields["token_notes"] = out.Diagnostics
	}
	if !out.OK() {
		diag := "no app token"
		if out.Err != nil {
			diag = out.Err.Error()
		}
		res.Message = "login failed: " + diag
		return res
	}
	res.Stage = out.Stage
	fields["stage"] = out.Stage

	steps := t.draw(lo, hi)
	fields["range"] = fmt.Sprintf("%d~%d", lo, hi)
	fields["steps"] = steps

	msg, err := t.submitter.SubmitSteps(ctx, steps, out.AppToken, out.UserID)
	if err != nil && msg == "" {
		msg = err.Error()
	}
	res.Message = fmt.Sprintf("set steps (%d) [%s]", steps, msg)
	res.Success = err == nil
	return res
}
