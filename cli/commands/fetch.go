package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	cliconfig "github.com/dataferry/connector/cli/internal/config"
	"github.com/dataferry/connector/cli/internal/ui"
	"github.com/dataferry/connector/table"
	"github.com/dataferry/connector/telemetry"
	"github.com/dataferry/connector/upload"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	var (
		prefix    string
		chunkSize int
		output    string
		maxRows   int
	)

	cmd := &cobra.Command{
		Use:   "fetch <query>",
		Short: "Run a query and print or export the result",
		Long: `Run a single SELECT against the configured target. Results stream from
the database in chunks and are printed as a table, or written as CSV under
the configured export directory with --output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			c, err := newClient(prefix)
			if err != nil {
				return err
			}
			defer c.Close()

			chunks, err := c.FetchChunks(cmd.Context(), args[0], chunkSize)
			telemetry.RecordCommand("fetch", c.Config().Target(), time.Since(start), err)
			if err != nil {
				return err
			}
			defer chunks.Close()

			var result *table.Table
			for chunks.Next() {
				chunk := chunks.Chunk()
				if result == nil {
					result = table.New(chunk.Columns)
				}
				if err := result.AppendTable(chunk); err != nil {
					return err
				}
				if maxRows > 0 && result.NumRows() >= maxRows {
					ui.PrintWarning("Stopping after %d rows (--max-rows)", maxRows)
					break
				}
			}
			if err := chunks.Err(); err != nil {
				return err
			}
			if result == nil {
				result = table.New(nil)
			}

			if output != "" {
				return exportCSV(cmd, output, result)
			}

			ui.PrintTable(result.Columns, tableRows(result))
			ui.PrintInfo("%d rows in %s", result.NumRows(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "environment prefix of the target")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "rows fetched per round trip (0 fetches everything at once)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result as CSV under the export directory")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "stop after this many rows (0 means no limit)")

	return cmd
}

func exportCSV(cmd *cobra.Command, key string, tbl *table.Table) error {
	cliCfg, err := cliconfig.LoadConfig()
	if err != nil {
		return err
	}

	store := upload.NewDirStore(cliconfig.AppFs, cliCfg.ExportDir)
	result := upload.New(store).UploadTable(cmd.Context(), key, tbl)
	if !result.Success {
		return errors.New(result.Error)
	}

	ui.PrintSuccess("Wrote %d rows to %s", tbl.NumRows(), result.Location)
	return nil
}
