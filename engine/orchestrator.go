package engine

import (
	"context"
	"fmt"
	goruntime "runtime"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Mora-na/mimotions/auth"
	"github.com/Mora-na/mimotions/credstore"
	"github.com/Mora-na/mimotions/history"
	"github.com/Mora-na/mimotions/metrics"
	"github.com/Mora-na/mimotions/notify"
	coreruntime "github.com/Mora-na/mimotions/runtime"
	"github.com/Mora-na/mimotions/types"
)

// Persister writes the credential mapping. *credstore.Vault implements it.
type Persister interface {
	Enabled() bool
	Save(records map[string]credstore.Record) error
}

// Notifier delivers the run report. *notify.Notifier implements it.
type Notifier interface {
	Notify(ctx context.Context, entries []notify.Entry, summary string) bool
}

// Recorder stores a finished run. *history.Store implements it.
type Recorder interface {
	RecordRun(ctx context.Context, run history.Run) error
}

// Options wires an Orchestrator. Runner is required; the rest are optional.
type Options struct {
	Config    *types.Config
	Runner    *TaskRunner
	Persister Persister
	Notifier  Notifier
	Recorder  Recorder
	Audit     *coreruntime.AuditLogger
	Clock     clockwork.Clock
	Logger    coreruntime.Logger
}

// Orchestrator executes all accounts once per Execute call.
type Orchestrator struct {
	cfg       *types.Config
	runner    *TaskRunner
	store     *credstore.Store
	persister Persister
	notifier  Notifier
	recorder  Recorder
	audit     *coreruntime.AuditLogger
	clock     clockwork.Clock
	logger    coreruntime.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		cfg:       opts.Config,
		runner:    opts.Runner,
		store:     opts.Runner.store,
		persister: opts.Persister,
		notifier:  opts.Notifier,
		recorder:  opts.Recorder,
		audit:     opts.Audit,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.logger == nil {
		o.logger = coreruntime.NopLogger{}
	}
	return o
}

// DefaultWorkers is the pool size used when MAX_WORKERS is unset.
func DefaultWorkers() int {
	return min(32, goruntime.NumCPU()+4)
}

// CheckAccounts returns a ConfigError when USER and PWD do not pair up.
func CheckAccounts(cfg *types.Config) error {
	if len(cfg.Users) != len(cfg.Passwords) {
		return &ConfigError{Msg: fmt.Sprintf("%d accounts but %d passwords", len(cfg.Users), len(cfg.Passwords))}
	}
	return nil
}

// Execute processes every account, persists credentials once, records and
// reports the run. Only configuration problems return an error; per-account
// failures are part of the Report.
func (o *Orchestrator) Execute(ctx context.Context) (*Report, error) {
	if err := CheckAccounts(o.cfg); err != nil {
		return nil, err
	}
	users, passwords := o.cfg.Users, o.cfg.Passwords

	report := &Report{
		RunID:     coreruntime.GenerateID(),
		Mode:      ModeSequential,
		StartedAt: o.clock.Now(),
	}
	if o.cfg.UseConcurrent {
		report.Mode = ModeConcurrent
	}
	ctx = coreruntime.WithRunID(ctx, report.RunID)

	o.logger.Info("run started", map[string]any{
		"run_id": report.RunID, "accounts": len(users), "mode": report.Mode,
	})
	o.audit.Emit(coreruntime.AuditEvent{
		Event: coreruntime.AuditRunStart, RunID: report.RunID,
		Fields: map[string]any{"accounts": len(users), "mode": report.Mode},
	})

	if o.cfg.UseConcurrent {
		report.Results = o.runConcurrent(ctx, users, passwords)
	} else {
		report.Results = o.runSequential(ctx, users, passwords)
	}

	run := metrics.NewRun()
	for _, r := range report.Results {
		if r.Success {
			report.Succeeded++
		}
		run.ObserveAccount(r.Success, r.Stage, r.Elapsed)
		o.audit.Emit(coreruntime.AuditEvent{
			Event: coreruntime.AuditAccountResult, RunID: report.RunID, Account: r.Masked,
			Fields: map[string]any{"success": r.Success, "message": r.Message, "stage": r.Stage},
		})
		if r.Stage != "" && r.Stage != auth.StageCheckApp {
			o.audit.Emit(coreruntime.AuditEvent{
				Event: coreruntime.AuditTokenRefresh, RunID: report.RunID, Account: r.Masked,
				Fields: map[string]any{"stage": r.Stage},
			})
		}
	}

	report.Persisted = o.persist(report.RunID)
	report.FinishedAt = o.clock.Now()
	run.Finish(report.FinishedAt, report.Persisted)

	o.logger.Info("run finished", map[string]any{
		"run_id": report.RunID, "summary": report.Summary(),
		"elapsed_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})

	o.record(ctx, report)
	if url := o.cfg.PushgatewayURL; url != "" {
		if err := run.Push(ctx, url); err != nil {
			o.logger.Warn("metrics push failed", map[string]any{"error": err.Error()})
		}
	}
	if o.notifier != nil {
		report.Notified = o.notifier.Notify(ctx, entries(report.Results), report.Summary())
	}

	o.audit.Emit(coreruntime.AuditEvent{
		Event: coreruntime.AuditRunEnd, RunID: report.RunID,
		Fields: map[string]any{
			"total": report.Total(), "succeeded": report.Succeeded,
			"failed": report.Failed(), "persisted": report.Persisted,
		},
	})
	return report, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, users, passwords []string) []Result {
	total := len(users)
	results := make([]Result, 0, total)
	for i := range users {
		if err := ctx.Err(); err != nil {
			results = append(results, cancelled(users[i], err))
			continue
		}
		results = append(results, o.runner.Run(ctx, i, total, users[i], passwords[i]))
		if i < total-1 && o.cfg.SleepGap > 0 {
			select {
			case <-o.clock.After(o.cfg.SleepGap):
			case <-ctx.Done():
			}
		}
	}
	return results
}

func (o *Orchestrator) runConcurrent(ctx context.Context, users, passwords []string) []Result {
	total := len(users)
	results := make([]Result, total)

	workers := o.cfg.MaxWorkers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range users {
		g.Go(func() error {
			results[i] = o.runner.Run(ctx, i, total, users[i], passwords[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// persist writes the credential store once. It reports whether a file was
// written.
func (o *Orchestrator) persist(runID string) bool {
	if o.persister == nil || !o.persister.Enabled() {
		o.logger.Debug("credential persistence disabled", nil)
		return false
	}
	if err := o.persister.Save(o.store.Snapshot()); err != nil {
		o.logger.Error("saving credentials failed", map[string]any{"error": err.Error()})
		return false
	}
	o.audit.Emit(coreruntime.AuditEvent{
		Event: coreruntime.AuditTokensPersisted, RunID: runID,
		Fields: map[string]any{"records": o.store.Len()},
	})
	return true
}

func (o *Orchestrator) record(ctx context.Context, report *Report) {
	if o.recorder == nil {
		return
	}
	run := history.Run{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Mode:       report.Mode,
		Total:      report.Total(),
		Succeeded:  report.Succeeded,
		Results:    make([]history.AccountResult, len(report.Results)),
	}
	for i, r := range report.Results {
		run.Results[i] = history.AccountResult{
			Account: r.Masked, Success: r.Success, Message: r.Message, Elapsed: r.Elapsed,
		}
	}
	if err := o.recorder.RecordRun(ctx, run); err != nil {
		o.logger.Warn("recording run history failed", map[string]any{"error": err.Error()})
	}
}

func cancelled(identity string, err error) Result {
	return Result{
		Account: identity,
		Masked:  auth.Desensitize(identity),
		Message: fmt.Sprintf("execution fault: %v", err),
	}
}
