// Package transfer copies table data between two configured database
// targets: rows are fetched from the source in chunks, rewritten as INSERT
// statements and executed against the target in bounded parallel waves.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"github.com/dataferry/connector/client"
	"github.com/dataferry/connector/config"
	"github.com/dataferry/connector/executor"
	"github.com/dataferry/connector/table"
)

// DefaultBatchSize is how many INSERT statements run in flight per wave.
const DefaultBatchSize = 15

// DefaultChunkSize is how many source rows go into one INSERT statement.
const DefaultChunkSize = 500

// Spec names one table to copy.
type Spec struct {
	// SourceTable is read from the source target.
	SourceTable string
	// TargetTable is written on the destination; empty means same name as
	// SourceTable.
	TargetTable string
	// Columns restricts the copy to the named columns. Empty copies all.
	Columns []string
}

// Options tune one copy run.
type Options struct {
	// BatchSize bounds how many INSERT statements run concurrently.
	// Zero means DefaultBatchSize.
	BatchSize int
	// ChunkSize is the number of rows per INSERT. Zero means
	// DefaultChunkSize.
	ChunkSize int
	// FailFast stops dispatching new waves after the first failed INSERT.
	FailFast bool
}

// Result summarizes one copy run.
type Result struct {
	SourceTable string
	TargetTable string
	RowsRead    int
	RowsWritten int64
	// Statements holds one entry per generated INSERT, in generation order.
	Statements []executor.StatementResult
	Duration   time.Duration
}

// Failed reports whether any INSERT in the run failed.
func (r Result) Failed() bool {
	for _, s := range r.Statements {
		if !s.Success {
			return true
		}
	}
	return false
}

// Manager copies data from one client's target to another's.
type Manager struct {
	source *client.Client
	target *client.Client
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for per-wave progress.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New builds a Manager that reads through source and writes through target.
func New(source, target *client.Client, opts ...Option) *Manager {
	m := &Manager{source: source, target: target}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Copy moves one table. Rows stream from the source in chunks of
// opts.ChunkSize; each chunk becomes one multi-row INSERT, and INSERTs are
// executed opts.BatchSize at a time against the target. The result lists
// every generated statement in order even when some fail.
func (m *Manager) Copy(ctx context.Context, spec Spec, opts Options) (Result, error) {
	start := time.Now()
	if spec.TargetTable == "" {
		spec.TargetTable = spec.SourceTable
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	result := Result{SourceTable: spec.SourceTable, TargetTable: spec.TargetTable}

	selectSQL, err := buildSelect(m.source.Config(), spec)
	if err != nil {
		return result, err
	}

	chunks, err := m.source.FetchChunks(ctx, selectSQL, opts.ChunkSize)
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", spec.SourceTable, err)
	}
	defer chunks.Close()

	targetDialect := dialect(m.target.Config())
	execOpts := executor.Options{Parallel: true, Workers: opts.BatchSize}

	var wave []string
	stopped := false
	for chunks.Next() {
		chunk := chunks.Chunk()
		result.RowsRead += chunk.NumRows()

		insertSQL, err := buildInsert(targetDialect, spec.TargetTable, chunk)
		if err != nil {
			return result, err
		}
		wave = append(wave, insertSQL)

		if len(wave) < opts.BatchSize {
			continue
		}
		if err := m.runWave(ctx, wave, execOpts, &result); err != nil {
			return result, err
		}
		wave = wave[:0]
		if opts.FailFast && result.Failed() {
			stopped = true
			break
		}
	}
	if err := chunks.Err(); err != nil {
		return result, fmt.Errorf("failed to read %s: %w", spec.SourceTable, err)
	}
	if len(wave) > 0 && !stopped {
		if err := m.runWave(ctx, wave, execOpts, &result); err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(start)
	if m.logger != nil {
		m.logger.Info("table copied",
			"source", spec.SourceTable,
			"target", spec.TargetTable,
			"rows", result.RowsRead,
			"duration", result.Duration)
	}
	return result, nil
}

// CopyAll copies every spec sequentially and returns one result per spec.
// The first spec whose copy aborts stops the run; per-statement failures do
// not.
func (m *Manager) CopyAll(ctx context.Context, specs []Spec, opts Options) ([]Result, error) {
	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		result, err := m.Copy(ctx, spec, opts)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (m *Manager) runWave(ctx context.Context, wave []string, opts executor.Options, result *Result) error {
	statements, err := m.target.ExecuteStatements(ctx, wave, opts)
	result.Statements = append(result.Statements, statements...)
	for _, s := range statements {
		if s.Success {
			result.RowsWritten += s.RowsAffected
		}
	}
	return err
}

func buildSelect(cfg config.Config, spec Spec) (string, error) {
	ds := goqu.Dialect(dialect(cfg)).From(spec.SourceTable)
	if len(spec.Columns) > 0 {
		cols := make([]interface{}, len(spec.Columns))
		for i, c := range spec.Columns {
			cols[i] = c
		}
		ds = ds.Select(cols...)
	}
	sql, _, err := ds.ToSQL()
	if err != nil {
		return "", fmt.Errorf("failed to build select for %s: %w", spec.SourceTable, err)
	}
	return sql, nil
}

func buildInsert(dialectName, target string, chunk *table.Table) (string, error) {
	cols := make([]interface{}, len(chunk.Columns))
	for i, c := range chunk.Columns {
		cols[i] = c
	}

	ds := goqu.Dialect(dialectName).Insert(target).Cols(cols...)
	for _, row := range chunk.Rows {
		ds = ds.Vals(goqu.Vals(row))
	}
	sql, _, err := ds.ToSQL()
	if err != nil {
		return "", fmt.Errorf("failed to build insert for %s: %w", target, err)
	}
	return sql, nil
}

// dialect maps a configured driver to the goqu dialect registered for it.
func dialect(cfg config.Config) string {
	switch cfg.Driver {
	case "postgres", "postgresql", "redshift":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return "default"
	}
}
