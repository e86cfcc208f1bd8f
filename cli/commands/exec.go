package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataferry/connector/cli/internal/ui"
	"github.com/dataferry/connector/executor"
	"github.com/dataferry/connector/telemetry"
)

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	var (
		file     string
		prefix   string
		parallel bool
		failFast bool
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "exec [statement...]",
		Short: "Run a batch of SQL statements",
		Long: `Run one or more SQL statements against the configured target. Statements
come from the arguments or from a script file; semicolons split multi-statement
input outside of quotes and comments. Every statement gets a result even when
earlier ones fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			statements, err := loadStatements(file, args)
			if err != nil {
				return err
			}

			c, err := newClient(prefix)
			if err != nil {
				return err
			}
			defer c.Close()

			results, err := c.ExecuteStatements(cmd.Context(), statements, executor.Options{
				Parallel: parallel,
				Workers:  workers,
				FailFast: failFast,
			})
			telemetry.RecordCommand("exec", c.Config().Target(), time.Since(start), err)
			if err != nil {
				return err
			}

			ui.PrintTable(
				[]string{"#", "Status", "Duration", "Rows", "Statement", "Error"},
				resultRows(results),
			)

			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d statements failed", failed, len(results))
			}
			ui.PrintSuccess("%d statements executed in %s",
				len(results), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read statements from a SQL script")
	cmd.Flags().StringVar(&prefix, "prefix", "", "environment prefix of the target")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "run statements concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent statements when --parallel (default: pool size)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "skip remaining statements after the first failure")

	return cmd
}
