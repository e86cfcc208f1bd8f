// Package commands implements the dataferry CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/dataferry/connector/cli/internal/ui"
	"github.com/dataferry/connector/cli/internal/version"
	"github.com/dataferry/connector/internal/debug"
	"github.com/dataferry/connector/telemetry"
)

var debugFlag bool

// NewRootCommand builds the dataferry command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dataferry",
		Short: "Run SQL batches and move data between databases",
		Long: `dataferry talks to databases through a bounded connection pool with
automatic retries. It runs statement batches sequentially or in parallel,
streams query results in chunks, and copies tables between targets.

Targets are configured through environment variables: pick a prefix such as
REDSHIFT and set REDSHIFT_HOST, REDSHIFT_DATABASE, REDSHIFT_USERNAME and
REDSHIFT_PASSWORD. Run "dataferry env" for the full reference.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug.Init(debugFlag)
			telemetry.Init(version.Version, true)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			telemetry.Shutdown()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("no-telemetry", false, "disable usage telemetry")

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewExecCommand())
	rootCmd.AddCommand(NewFetchCommand())
	rootCmd.AddCommand(NewTransferCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewSSOCommand())
	rootCmd.AddCommand(NewEnvCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	err := NewRootCommand().Execute()
	if err != nil {
		ui.PrintError("%v", err)
	}
	return err
}
