// Package fetch streams a query's result set as bounded-size row chunks.
package fetch

import (
	"context"

	"github.com/dataferry/connector/connerr"
	"github.com/dataferry/connector/driver"
	"github.com/dataferry/connector/retry"
	"github.com/dataferry/connector/table"
)

// ReleaseFunc gives the connection owning the cursor back to its pool.
// broken reports whether the connection failed with a connectivity error.
type ReleaseFunc func(broken bool)

// Chunks is a lazy, forward-only iterator over a result set. The caller
// drives progress:
//
//	for chunks.Next() {
//		use(chunks.Chunk())
//	}
//	err := chunks.Err()
//
// Close is safe to call at any point and releases the cursor and its
// connection exactly once, so abandoning iteration early does not leak.
type Chunks struct {
	ctx     context.Context
	cursor  driver.Cursor
	release ReleaseFunc
	size    int
	policy  retry.Policy

	chunk    *table.Table
	err      error
	done     bool
	released bool
}

// New creates a chunk iterator over cursor. A size <= 0 materializes the
// whole result set as a single chunk. Each pull is wrapped by policy to
// absorb transient fetch failures.
func New(ctx context.Context, cursor driver.Cursor, size int, policy retry.Policy, release ReleaseFunc) *Chunks {
	if release == nil {
		release = func(bool) {}
	}
	return &Chunks{
		ctx:     ctx,
		cursor:  cursor,
		release: release,
		size:    size,
		policy:  policy,
	}
}

// Next pulls the next chunk and reports whether one is available.
func (c *Chunks) Next() bool {
	if c.done || c.err != nil {
		return false
	}

	rows, err := retry.DoWithResult(c.ctx, c.policy, func() ([][]any, error) {
		return c.cursor.Fetch(c.size)
	})
	if err != nil {
		c.err = &connerr.QueryError{Cause: err}
		c.finish(connerr.IsConnectivity(err))
		return false
	}

	if len(rows) == 0 {
		// With no chunk size the whole (possibly empty) result is still
		// one chunk.
		if c.size <= 0 && c.chunk == nil {
			c.chunk = table.New(c.cursor.Columns())
			c.finish(false)
			return true
		}
		c.finish(false)
		return false
	}

	c.chunk = &table.Table{Columns: c.cursor.Columns(), Rows: rows}

	if c.size <= 0 || len(rows) < c.size {
		// The cursor cannot have more rows; end eagerly so well-behaved
		// callers release the connection without an extra round trip.
		c.finish(false)
	}
	return true
}

// Chunk returns the chunk produced by the last successful Next.
func (c *Chunks) Chunk() *table.Table {
	return c.chunk
}

// Err returns the first error encountered while iterating.
func (c *Chunks) Err() error {
	return c.err
}

// Close releases the cursor and its connection. It is idempotent and must
// be called when abandoning iteration before exhaustion.
func (c *Chunks) Close() error {
	c.finish(false)
	return nil
}

func (c *Chunks) finish(broken bool) {
	c.done = true
	if c.released {
		return
	}
	c.released = true
	c.cursor.Close()
	c.release(broken)
}
