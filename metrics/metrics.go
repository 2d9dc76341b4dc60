// Package metrics collects per-run Prometheus metrics and pushes them to a
// Pushgateway when one is configured.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Job is the Pushgateway job name.
const Job = "mimotions"

// Run holds the collectors for one execution.
type Run struct {
	reg *prometheus.Registry

	// AccountsTotal counts processed accounts by result (success/failure).
	AccountsTotal *prometheus.CounterVec
	// StageTotal counts token cascade outcomes by stage.
	StageTotal *prometheus.CounterVec
	// AccountDuration observes per-account wall time.
	AccountDuration prometheus.Histogram
	// LastRunTimestamp is the unix time the run finished.
	LastRunTimestamp prometheus.Gauge
	// TokensPersisted is 1 when the credential file was written this run.
	TokensPersisted prometheus.Gauge
}

// NewRun registers a fresh set of collectors on a private registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		reg: reg,
		AccountsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mimotions_accounts_total",
				Help: "Accounts processed by result",
			},
			[]string{"result"},
		),
		StageTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mimotions_token_stage_total",
				Help: "Token acquisitions by the cascade stage that produced them",
			},
			[]string{"stage"},
		),
		AccountDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mimotions_account_duration_seconds",
				Help:    "Per-account processing time in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		LastRunTimestamp: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "mimotions_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run",
			},
		),
		TokensPersisted: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "mimotions_tokens_persisted",
				Help: "1 if the credential file was written in the last run",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Run) Registry() *prometheus.Registry { return r.reg }

// ObserveAccount records one account result.
func (r *Run) ObserveAccount(success bool, stage string, elapsed time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	r.AccountsTotal.WithLabelValues(result).Inc()
	if stage != "" {
		r.StageTotal.WithLabelValues(stage).Inc()
	}
	r.AccountDuration.Observe(elapsed.Seconds())
}

// Finish stamps the completion time.
func (r *Run) Finish(now time.Time, persisted bool) {
	r.LastRunTimestamp.Set(float64(now.Unix()))
	if persisted {
		r.TokensPersisted.Set(1)
	} else {
		r.TokensPersisted.Set(0)
	}
}

// Push sends all collectors to the Pushgateway at url, replacing the
// previous values for Job.
func (r *Run) Push(ctx context.Context, url string) error {
	if err := push.New(url, Job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
