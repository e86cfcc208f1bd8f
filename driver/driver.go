// Package driver defines the capability interfaces the connector needs from
// a database driver, plus the database/sql-backed default implementation.
//
// The interfaces exist so tests and alternative transports can substitute a
// fake connection without touching the pool or executor.
package driver

import (
	"context"

	"github.com/dataferry/connector/config"
)

// Connector opens connections to one configured target.
type Connector interface {
	// Connect establishes a single exclusive connection.
	Connect(ctx context.Context, cfg config.Config) (Conn, error)
}

// Conn is one live database session. A Conn is never shared between
// callers; the pool hands it out exclusively.
type Conn interface {
	// Exec runs a statement that returns no rows and reports the number of
	// affected rows when the driver knows it.
	Exec(ctx context.Context, statement string) (int64, error)

	// Query runs a statement and returns a forward-only cursor over its
	// result set.
	Query(ctx context.Context, query string) (Cursor, error)

	// Ping verifies the session is still alive.
	Ping(ctx context.Context) error

	// Close releases the underlying session.
	Close() error
}

// Cursor is a forward-only, non-restartable view over one result set.
type Cursor interface {
	// Columns returns the result columns in order.
	Columns() []string

	// Fetch returns the next n rows, or all remaining rows when n <= 0.
	// A batch shorter than n, including an empty one, means the result
	// set is exhausted.
	Fetch(n int) ([][]any, error)

	// Close releases the cursor.
	Close() error
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, cfg config.Config) (Conn, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, cfg config.Config) (Conn, error) {
	return f(ctx, cfg)
}
