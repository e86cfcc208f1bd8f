package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/dataferry/connector/cli/internal/config"
	"github.com/dataferry/connector/client"
	connectorconfig "github.com/dataferry/connector/config"
	"github.com/dataferry/connector/executor"
	"github.com/dataferry/connector/internal/debug"
	"github.com/dataferry/connector/sqlscript"
	"github.com/dataferry/connector/table"
)

// newClient builds a client for the target named by the <prefix>_*
// environment variables. An empty prefix falls back to the CLI config.
func newClient(prefix string) (*client.Client, error) {
	cliCfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = cliCfg.EnvPrefix
	}

	cfg, err := connectorconfig.FromEnv(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to configure target %s: %w", prefix, err)
	}
	cfg.LogStatements = cfg.LogStatements || cliCfg.LogStatements

	return client.New(cfg, client.WithLogger(debug.Logger()))
}

// loadStatements reads the batch either from a script file or from the
// command arguments, splitting multi-statement input on semicolons.
func loadStatements(file string, args []string) ([]string, error) {
	if file != "" {
		data, err := afero.ReadFile(config.AppFs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		return sqlscript.Split(string(data))
	}

	var statements []string
	for _, arg := range args {
		split, err := sqlscript.Split(arg)
		if err != nil {
			return nil, err
		}
		statements = append(statements, split...)
	}
	if len(statements) == 0 {
		return nil, errors.New("no statements given: pass them as arguments or via --file")
	}
	return statements, nil
}

// resultRows renders statement results for ui.PrintTable.
func resultRows(results []executor.StatementResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		detail := ""
		if !r.Success {
			status = "failed"
			detail = r.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Index + 1),
			status,
			r.Duration.Round(time.Millisecond).String(),
			strconv.FormatInt(r.RowsAffected, 10),
			truncate(r.Statement, 60),
			truncate(detail, 60),
		})
	}
	return rows
}

// tableRows stringifies fetched values for ui.PrintTable.
func tableRows(tbl *table.Table) [][]string {
	rows := make([][]string, 0, tbl.NumRows())
	for _, row := range tbl.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		rows = append(rows, cells)
	}
	return rows
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func countFailed(results []executor.StatementResult) int {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	return failed
}
