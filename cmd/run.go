package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every configured account once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}
}

func runOnce(cmd *cobra.Command, opts *globalOptions) error {
	s, err := opts.newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.execute(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	renderReport(cmd.OutOrStdout(), report)
	return nil
}
