package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataferry/connector/retry"
	"github.com/dataferry/connector/table"
)

type fakeCursor struct {
	columns  []string
	rows     [][]any
	pos      int
	failures int // transient failures to inject before the first batch
	fetches  int
	closed   bool
}

func (c *fakeCursor) Columns() []string { return c.columns }

func (c *fakeCursor) Fetch(n int) ([][]any, error) {
	c.fetches++
	if c.failures > 0 {
		c.failures--
		return nil, errors.New("connection reset by peer")
	}
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	end := len(c.rows)
	if n > 0 && c.pos+n < end {
		end = c.pos + n
	}
	batch := c.rows[c.pos:end]
	c.pos = end
	return batch, nil
}

func (c *fakeCursor) Close() error {
	c.closed = true
	return nil
}

func fiveRows() [][]any {
	return [][]any{{1}, {2}, {3}, {4}, {5}}
}

func collect(t *testing.T, c *Chunks) []*table.Table {
	t.Helper()
	var out []*table.Table
	for c.Next() {
		out = append(out, c.Chunk())
	}
	require.NoError(t, c.Err())
	return out
}

func TestChunkSizes(t *testing.T) {
	cursor := &fakeCursor{columns: []string{"n"}, rows: fiveRows()}
	released := false
	chunks := New(context.Background(), cursor, 2, retry.New(0, 0), func(broken bool) {
		released = true
		assert.False(t, broken)
	})

	got := collect(t, chunks)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].NumRows())
	assert.Equal(t, 2, got[1].NumRows())
	assert.Equal(t, 1, got[2].NumRows())
	assert.True(t, released)
	assert.True(t, cursor.closed)
}

func TestChunksReproduceFullResult(t *testing.T) {
	chunked := &fakeCursor{columns: []string{"n"}, rows: fiveRows()}
	chunks := New(context.Background(), chunked, 2, retry.New(0, 0), nil)

	merged := table.New([]string{"n"})
	for chunks.Next() {
		require.NoError(t, merged.AppendTable(chunks.Chunk()))
	}
	require.NoError(t, chunks.Err())

	whole := &fakeCursor{columns: []string{"n"}, rows: fiveRows()}
	single := New(context.Background(), whole, 0, retry.New(0, 0), nil)
	require.True(t, single.Next())
	assert.Equal(t, single.Chunk().Rows, merged.Rows)
	assert.False(t, single.Next())
}

func TestNoChunkSizeEmptyResult(t *testing.T) {
	cursor := &fakeCursor{columns: []string{"n"}}
	chunks := New(context.Background(), cursor, 0, retry.New(0, 0), nil)

	require.True(t, chunks.Next())
	assert.Equal(t, 0, chunks.Chunk().NumRows())
	assert.Equal(t, []string{"n"}, chunks.Chunk().Columns)
	assert.False(t, chunks.Next())
	require.NoError(t, chunks.Err())
}

func TestEarlyCloseReleasesOnce(t *testing.T) {
	cursor := &fakeCursor{columns: []string{"n"}, rows: fiveRows()}
	releases := 0
	chunks := New(context.Background(), cursor, 2, retry.New(0, 0), func(bool) { releases++ })

	require.True(t, chunks.Next())
	require.NoError(t, chunks.Close())
	require.NoError(t, chunks.Close())

	assert.False(t, chunks.Next())
	assert.Equal(t, 1, releases)
	assert.True(t, cursor.closed)
}

func TestTransientFetchFailureRetried(t *testing.T) {
	cursor := &fakeCursor{columns: []string{"n"}, rows: fiveRows(), failures: 2}
	chunks := New(context.Background(), cursor, 3, retry.New(3, 0), nil)

	got := collect(t, chunks)
	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].NumRows()+got[1].NumRows())
}

func TestFetchFailureAfterRetries(t *testing.T) {
	cursor := &fakeCursor{columns: []string{"n"}, rows: fiveRows(), failures: 10}
	broken := false
	chunks := New(context.Background(), cursor, 2, retry.New(1, 0), func(b bool) { broken = b })

	assert.False(t, chunks.Next())
	require.Error(t, chunks.Err())
	assert.True(t, broken)
	assert.Equal(t, 2, cursor.fetches)
}
