// Package cmd implements the mimotions command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func configError(err error) error {
	return &ExitError{Code: 1, Err: err}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	envFile    string
	logFormat  string
	auditFile  string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "mimotions",
		Short: "Submit a randomised daily step count for configured Zepp accounts",
		Long: "mimotions signs in to each configured account, reusing cached tokens where possible,\n" +
			"uploads a step count drawn from the configured range and reports the outcome.\n" +
			"Without a subcommand it performs a single run.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "config file (YAML or JSON); defaults to the CONFIG environment variable")
	pf.StringVar(&opts.envFile, "env", ".env", "dotenv file consulted for AES_KEY and CONFIG")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&opts.auditFile, "audit", "", "append NDJSON audit events to this file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(opts),
		newScheduleCmd(opts),
		newTokensCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		var ee *ExitError
		if errors.As(err, &ee) {
			return ee.Code
		}
		return 1
	}
	return 0
}
