package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Mora-na/mimotions/history"
	"github.com/Mora-na/mimotions/types"
)

func newHistoryCmd(_ *globalOptions) *cobra.Command {
	var (
		db    string
		limit int
		tz    string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := (&types.Config{Timezone: tz}).Location()
			if err != nil {
				return configError(err)
			}
			store, err := history.Open(db)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), runs, loc)
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "mimotions.db", "history database (HISTORY_DB)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().StringVar(&tz, "timezone", types.DefaultTimezone, "time zone for displayed times")
	return cmd
}
