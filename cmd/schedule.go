package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mora-na/mimotions/engine"
	"github.com/Mora-na/mimotions/scheduler"
)

func newScheduleCmd(opts *globalOptions) *cobra.Command {
	var cron string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run on a cron schedule until interrupted",
		Long: "Run repeatedly on a cron schedule (5-field, @hourly, @daily, @weekly, @monthly or\n" +
			"@every <duration>) evaluated in the configured TIMEZONE. A tick is skipped while the\n" +
			"previous run is still in progress.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			// A mismatch would fail every tick, so refuse to start.
			if err := engine.CheckAccounts(s.cfg); err != nil {
				return configError(err)
			}
			loc, err := s.cfg.Location()
			if err != nil {
				return configError(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			job := func(ctx context.Context) error {
				report, err := s.execute(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				renderReport(cmd.OutOrStdout(), report)
				return nil
			}

			sched, err := scheduler.New(cron, loc, job, s.clock, s.logger)
			if err != nil {
				return configError(err)
			}
			return sched.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cron, "cron", "", "cron expression, e.g. \"0 22 * * *\"")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}
