// Package client is the user-facing entry point: a pooled, retrying
// database client with batch execution and chunked fetch.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dataferry/connector/config"
	"github.com/dataferry/connector/connerr"
	"github.com/dataferry/connector/driver"
	"github.com/dataferry/connector/executor"
	"github.com/dataferry/connector/fetch"
	"github.com/dataferry/connector/pool"
	"github.com/dataferry/connector/retry"
	"github.com/dataferry/connector/table"
)

// Client talks to one configured database target through a bounded
// connection pool. All methods are safe for concurrent use.
type Client struct {
	cfg       config.Config
	connector driver.Connector
	pool      *pool.Pool
	exec      *executor.Executor
	policy    retry.Policy
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithConnector substitutes the driver connector, typically with a fake in
// tests.
func WithConnector(connector driver.Connector) Option {
	return func(c *Client) {
		c.connector = connector
	}
}

// WithLogger injects the logger used for statement echo and retry
// diagnostics. Without it the client is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New validates cfg and builds a Client. No connection is opened until the
// first operation.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.connector == nil {
		c.connector = driver.NewSQLConnector()
	}

	c.policy = retry.New(cfg.MaxRetries, cfg.RetryDelay).WithLogger(c.logger)
	c.pool = pool.New(cfg, c.connector, pool.WithLogger(c.logger))
	c.exec = executor.New(c.pool, c.policy,
		executor.WithLogger(c.logger),
		executor.WithEcho(cfg.LogStatements))
	return c, nil
}

// FromEnv builds a Client from <PREFIX>_* environment variables.
func FromEnv(prefix string, opts ...Option) (*Client, error) {
	cfg, err := config.FromEnv(prefix)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// Config returns the client's configuration.
func (c *Client) Config() config.Config {
	return c.cfg
}

// Pool exposes the underlying connection pool, mainly for stats.
func (c *Client) Pool() *pool.Pool {
	return c.pool
}

// Connect verifies the target is reachable by opening and returning one
// pooled connection. Operations connect lazily, so calling this is
// optional.
func (c *Client) Connect(ctx context.Context) error {
	return c.pool.WithConn(ctx, func(conn driver.Conn) error {
		return conn.Ping(ctx)
	})
}

// Close shuts the pool down and closes the connector when it owns other
// resources.
func (c *Client) Close() error {
	c.pool.Close()
	if closer, ok := c.connector.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Fetch runs a query and materializes the whole result set.
func (c *Client) Fetch(ctx context.Context, query string) (*table.Table, error) {
	chunks, err := c.FetchChunks(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	defer chunks.Close()

	if !chunks.Next() {
		if err := chunks.Err(); err != nil {
			return nil, err
		}
		return table.New(nil), nil
	}
	return chunks.Chunk(), nil
}

// FetchChunks runs a query and returns a lazy iterator over row chunks of
// at most size rows. A size <= 0 yields everything as one chunk. The
// borrowed connection is held until the iterator is exhausted or closed.
func (c *Client) FetchChunks(ctx context.Context, query string, size int) (*fetch.Chunks, error) {
	query = normalize(query)
	if c.cfg.LogStatements && c.logger != nil {
		c.logger.Info("executing query", "query", query)
	}

	var conn driver.Conn
	var cursor driver.Cursor
	err := c.policy.Do(ctx, func() error {
		var err error
		conn, err = c.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		cursor, err = conn.Query(ctx, query)
		if err != nil {
			c.giveBack(conn, connerr.IsConnectivity(err))
			conn = nil
			return err
		}
		return nil
	})
	if err != nil {
		if connerr.IsConnection(err) {
			return nil, err
		}
		return nil, &connerr.QueryError{Statement: query, Cause: err}
	}

	release := func(broken bool) { c.giveBack(conn, broken) }
	return fetch.New(ctx, cursor, size, c.policy, release), nil
}

// ExecuteStatements runs a statement batch, collecting one result per
// statement in submission order. See executor.Options for the parallel and
// fail-fast modes.
func (c *Client) ExecuteStatements(ctx context.Context, statements []string, opts executor.Options) ([]executor.StatementResult, error) {
	normalized := make([]string, len(statements))
	for i, s := range statements {
		normalized[i] = normalize(s)
	}
	return c.exec.Run(ctx, normalized, opts)
}

// ExecuteStatement runs a single statement.
func (c *Client) ExecuteStatement(ctx context.Context, statement string) (executor.StatementResult, error) {
	results, err := c.ExecuteStatements(ctx, []string{statement}, executor.Options{})
	if err != nil {
		return executor.StatementResult{}, err
	}
	return results[0], nil
}

// String describes the client without exposing credentials.
func (c *Client) String() string {
	return fmt.Sprintf("Client(target=%q, username=%q, pool_size=%d, max_retries=%d)",
		c.cfg.Target(), c.cfg.Username, c.cfg.PoolSize, c.cfg.MaxRetries)
}

func (c *Client) giveBack(conn driver.Conn, broken bool) {
	if broken {
		c.pool.ReleaseBroken(conn)
	} else {
		c.pool.Release(conn)
	}
}

// normalize strips the trailing semicolon some drivers reject on single
// statements.
func normalize(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), ";")
}
