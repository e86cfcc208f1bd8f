// Package executor runs statement batches against pooled connections,
// sequentially or across a bounded set of workers.
package executor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dataferry/connector/driver"
	"github.com/dataferry/connector/pool"
	"github.com/dataferry/connector/retry"
)

// StatementResult is the outcome of one statement in a batch. A failed
// statement is reported here instead of aborting its siblings.
type StatementResult struct {
	Index        int
	Statement    string
	Success      bool
	Error        string
	Duration     time.Duration
	RowsAffected int64
}

// Options controls how a batch runs.
type Options struct {
	// Parallel dispatches statements across a worker pool instead of
	// running them one at a time.
	Parallel bool

	// Workers caps parallel dispatch. Zero means the pool size.
	Workers int

	// FailFast stops dispatching after the first failure (sequential
	// mode only). Skipped statements still appear in the results.
	FailFast bool
}

// Executor executes statement batches.
type Executor struct {
	pool   *pool.Pool
	policy retry.Policy
	logger *slog.Logger
	echo   bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger statement echo and retries report to.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
		e.policy.Logger = logger
	}
}

// WithEcho logs every statement before execution.
func WithEcho(echo bool) Option {
	return func(e *Executor) {
		e.echo = echo
	}
}

// New creates an Executor borrowing connections from p. Each statement is
// independently wrapped by policy.
func New(p *pool.Pool, policy retry.Policy, opts ...Option) *Executor {
	e := &Executor{pool: p, policy: policy}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes statements and returns one result per statement, in
// submission order, regardless of execution mode or individual failures.
// The returned error is non-nil only when the batch was cut short by ctx;
// even then every statement has a result.
func (e *Executor) Run(ctx context.Context, statements []string, opts Options) ([]StatementResult, error) {
	results := make([]StatementResult, len(statements))
	if len(statements) == 0 {
		return results, nil
	}

	if opts.Parallel {
		e.runParallel(ctx, statements, opts, results)
	} else {
		e.runSequential(ctx, statements, opts, results)
	}
	return results, ctx.Err()
}

func (e *Executor) runSequential(ctx context.Context, statements []string, opts Options, results []StatementResult) {
	failed := false
	for i, stmt := range statements {
		if failed && opts.FailFast {
			results[i] = skipped(i, stmt, "skipped: fail-fast after earlier failure")
			continue
		}
		if ctx.Err() != nil {
			results[i] = skipped(i, stmt, ctx.Err().Error())
			continue
		}
		results[i] = e.runOne(ctx, i, stmt)
		if !results[i].Success {
			failed = true
		}
	}
}

func (e *Executor) runParallel(ctx context.Context, statements []string, opts Options, results []StatementResult) {
	workers := opts.Workers
	if workers <= 0 {
		workers = e.pool.Size()
	}
	if workers > len(statements) {
		workers = len(statements)
	}

	// A plain group, not WithContext: one statement's failure must not
	// cancel its siblings. Caller cancellation is still honored per task.
	var g errgroup.Group
	g.SetLimit(workers)
	for i, stmt := range statements {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = skipped(i, stmt, ctx.Err().Error())
				return nil
			}
			results[i] = e.runOne(ctx, i, stmt)
			return nil
		})
	}
	g.Wait()
}

// runOne executes a single statement with retry, borrowing a fresh
// connection per attempt so a broken one is not reused.
func (e *Executor) runOne(ctx context.Context, index int, statement string) StatementResult {
	if e.echo && e.logger != nil {
		e.logger.Info("executing statement", "index", index, "statement", statement)
	}

	start := time.Now()
	var affected int64

	err := e.policy.Do(ctx, func() error {
		return e.pool.WithConn(ctx, func(conn driver.Conn) error {
			n, execErr := conn.Exec(ctx, statement)
			affected = n
			return execErr
		})
	})

	result := StatementResult{
		Index:        index,
		Statement:    statement,
		Duration:     time.Since(start),
		RowsAffected: affected,
	}
	if err != nil {
		result.Error = err.Error()
		if e.echo && e.logger != nil {
			e.logger.Error("statement failed", "index", index, "statement", statement, "duration", result.Duration, "error", err)
		}
		return result
	}

	result.Success = true
	if e.echo && e.logger != nil {
		e.logger.Info("statement succeeded", "index", index, "statement", statement, "duration", result.Duration)
	}
	return result
}

func skipped(index int, statement, reason string) StatementResult {
	return StatementResult{Index: index, Statement: statement, Error: reason}
}
