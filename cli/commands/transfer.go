package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cliconfig "github.com/dataferry/connector/cli/internal/config"
	"github.com/dataferry/connector/cli/internal/ui"
	"github.com/dataferry/connector/internal/debug"
	"github.com/dataferry/connector/telemetry"
	"github.com/dataferry/connector/transfer"
)

// NewTransferCommand creates the transfer command.
func NewTransferCommand() *cobra.Command {
	var (
		sourcePrefix string
		targetPrefix string
		targetTable  string
		columns      []string
		chunkSize    int
		batchSize    int
		failFast     bool
	)

	cmd := &cobra.Command{
		Use:   "transfer <table>...",
		Short: "Copy tables between two database targets",
		Long: `Copy one or more tables from the source target to the destination target.
Rows stream out of the source in chunks; each chunk becomes a multi-row INSERT
and INSERTs run in bounded parallel waves against the destination.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetTable != "" && len(args) > 1 {
				return fmt.Errorf("--target-table only applies when copying a single table")
			}

			cliCfg, err := cliconfig.LoadConfig()
			if err != nil {
				return err
			}
			if sourcePrefix == "" {
				sourcePrefix = cliCfg.SourcePrefix
			}
			if targetPrefix == "" {
				targetPrefix = cliCfg.TargetPrefix
			}

			source, err := newClient(sourcePrefix)
			if err != nil {
				return err
			}
			defer source.Close()

			target, err := newClient(targetPrefix)
			if err != nil {
				return err
			}
			defer target.Close()

			specs := make([]transfer.Spec, 0, len(args))
			for _, name := range args {
				specs = append(specs, transfer.Spec{
					SourceTable: name,
					TargetTable: targetTable,
					Columns:     columns,
				})
			}

			m := transfer.New(source, target, transfer.WithLogger(debug.Logger()))
			results, err := m.CopyAll(cmd.Context(), specs, transfer.Options{
				BatchSize: batchSize,
				ChunkSize: chunkSize,
				FailFast:  failFast,
			})

			failedTables := 0
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				telemetry.RecordTransfer(r.SourceTable, r.RowsRead, r.Duration, r.Failed())

				status := "ok"
				if r.Failed() {
					status = "failed"
					failedTables++
				}
				rows = append(rows, []string{
					r.SourceTable,
					r.TargetTable,
					status,
					fmt.Sprintf("%d", r.RowsRead),
					fmt.Sprintf("%d", r.RowsWritten),
					r.Duration.Round(time.Millisecond).String(),
				})
			}
			ui.PrintTable([]string{"Source", "Target", "Status", "Rows read", "Rows written", "Duration"}, rows)

			if err != nil {
				return err
			}
			if failedTables > 0 {
				return fmt.Errorf("%d of %d tables failed to copy", failedTables, len(results))
			}
			ui.PrintSuccess("%d tables copied", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcePrefix, "source", "", "environment prefix of the source target")
	cmd.Flags().StringVar(&targetPrefix, "target", "", "environment prefix of the destination target")
	cmd.Flags().StringVar(&targetTable, "target-table", "", "rename the table on the destination")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "copy only the named columns")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "rows per INSERT statement")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "INSERT statements in flight per wave")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop a table copy after the first failed INSERT")

	return cmd
}
