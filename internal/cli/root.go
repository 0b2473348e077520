// Package cli wires configuration, adapters and the pipeline driver behind
// the cme-etl command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the cme-etl command. It runs one job for the process
// date given as its only argument.
func NewRootCmd() *cobra.Command {
	var dryRun bool

	rootCmd := &cobra.Command{
		Use:   "cme-etl <YYYY-MM-DD>",
		Short: "Load NASA DONKI CME analyses into the warehouse",
		Long: `cme-etl fetches the CME analyses published in the seven days up to the
process date, cleans them, and appends them to {schema}.coronal_mass_ejection.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), args[0], dryRun)
		},
	}

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract and transform only; skip the load and notifications")

	rootCmd.AddCommand(newCheckConfigCmd())

	return rootCmd
}
