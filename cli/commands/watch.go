package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataferry/connector/cli/internal/ui"
	"github.com/dataferry/connector/cli/internal/watch"
	"github.com/dataferry/connector/executor"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var (
		prefix   string
		parallel bool
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "watch <script.sql>",
		Short: "Re-run a SQL script whenever it changes",
		Long: `Run a SQL script once and again after every save, until interrupted.
Useful while iterating on a migration or report script.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := args[0]

			run := func() error {
				start := time.Now()
				statements, err := loadStatements(script, nil)
				if err != nil {
					ui.PrintError("%v", err)
					return nil // keep watching
				}

				c, err := newClient(prefix)
				if err != nil {
					ui.PrintError("%v", err)
					return nil
				}
				defer c.Close()

				results, err := c.ExecuteStatements(cmd.Context(), statements, executor.Options{
					Parallel: parallel,
					FailFast: failFast,
				})
				if err != nil {
					ui.PrintError("%v", err)
					return nil
				}

				ui.PrintTable(
					[]string{"#", "Status", "Duration", "Rows", "Statement", "Error"},
					resultRows(results),
				)
				if failed := countFailed(results); failed > 0 {
					ui.PrintWarning("%d of %d statements failed", failed, len(results))
				} else {
					ui.PrintSuccess("%d statements in %s", len(results), time.Since(start).Round(time.Millisecond))
				}
				ui.PrintInfo("Watching %s, press Ctrl+C to stop", script)
				return nil
			}

			w, err := watch.NewWatcher(script, run)
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return w.Stop()
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "environment prefix of the target")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run statements concurrently")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "skip remaining statements after the first failure")

	return cmd
}
