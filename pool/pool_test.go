package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataferry/connector/config"
	"github.com/dataferry/connector/connerr"
	"github.com/dataferry/connector/driver"
)

type fakeConn struct {
	id     int64
	closed atomic.Bool
}

func (c *fakeConn) Exec(ctx context.Context, statement string) (int64, error) { return 0, nil }
func (c *fakeConn) Query(ctx context.Context, query string) (driver.Cursor, error) {
	return nil, errors.New("not implemented")
}
func (c *fakeConn) Ping(ctx context.Context) error { return nil }
func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// fakeConnector counts dials and can fail the first failures dials.
type fakeConnector struct {
	dials    atomic.Int64
	failures int64
}

func (f *fakeConnector) Connect(ctx context.Context, cfg config.Config) (driver.Conn, error) {
	n := f.dials.Add(1)
	if n <= f.failures {
		return nil, errors.New("dial tcp: connection refused")
	}
	return &fakeConn{id: n}, nil
}

func testConfig() config.Config {
	c := config.Default()
	c.DSN = "TEST"
	c.Username = "u"
	c.Password = "p"
	c.RetryDelay = 0
	c.PoolSize = 2
	c.PoolTimeout = 200 * time.Millisecond
	return c
}

func TestAcquireRelease(t *testing.T) {
	connector := &fakeConnector{}
	p := New(testConfig(), connector)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Active())

	p.Release(conn)
	assert.Equal(t, 0, p.Active())
	assert.Equal(t, 1, p.Idle())

	// A released connection is reused, not re-dialed.
	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), connector.dials.Load())
	p.Release(again)
}

func TestPoolExhaustion(t *testing.T) {
	connector := &fakeConnector{}
	p := New(testConfig(), connector)
	defer p.Close()

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, connerr.IsConnection(err))
	assert.ErrorIs(t, err, connerr.ErrPoolExhausted)

	p.Release(a)
	p.Release(b)
}

func TestConnectRetries(t *testing.T) {
	connector := &fakeConnector{failures: 2}
	cfg := testConfig()
	cfg.MaxRetries = 3
	p := New(cfg, connector)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), connector.dials.Load())
	p.Release(conn)
}

func TestConnectExhaustsRetries(t *testing.T) {
	connector := &fakeConnector{failures: 1 << 30}
	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.PoolTimeout = 2 * time.Second
	p := New(cfg, connector)
	defer p.Close()

	_, err := p.Acquire(context.Background())
	require.Error(t, err)

	var ce *connerr.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Attempts)
	assert.Equal(t, int64(3), connector.dials.Load())
}

func TestBrokenConnectionNeverRelent(t *testing.T) {
	connector := &fakeConnector{}
	p := New(testConfig(), connector)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	first := conn.(*fakeConn)

	p.ReleaseBroken(conn)
	assert.True(t, first.closed.Load())
	assert.Equal(t, 0, p.Idle())

	next, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, next.(*fakeConn))
	assert.Equal(t, int64(2), connector.dials.Load())
	p.Release(next)
}

func TestWithConnReleasesOnError(t *testing.T) {
	connector := &fakeConnector{}
	p := New(testConfig(), connector)
	defer p.Close()

	stmtErr := errors.New("syntax error at line 1")
	err := p.WithConn(context.Background(), func(conn driver.Conn) error {
		return stmtErr
	})
	assert.ErrorIs(t, err, stmtErr)
	// Statement-level failure: connection survives.
	assert.Equal(t, 0, p.Active())
	assert.Equal(t, 1, p.Idle())

	err = p.WithConn(context.Background(), func(conn driver.Conn) error {
		return errors.New("server closed the connection unexpectedly")
	})
	require.Error(t, err)
	// Connectivity failure: connection discarded.
	assert.Equal(t, 0, p.Active())
	assert.Equal(t, 0, p.Idle())
}

func TestPoolBoundUnderConcurrency(t *testing.T) {
	connector := &fakeConnector{}
	cfg := testConfig()
	cfg.PoolSize = 3
	cfg.PoolTimeout = 5 * time.Second
	p := New(cfg, connector)
	defer p.Close()

	var inUse, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.WithConn(context.Background(), func(conn driver.Conn) error {
				now := inUse.Add(1)
				for {
					prev := peak.Load()
					if now <= prev || peak.CompareAndSwap(prev, now) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inUse.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.LessOrEqual(t, connector.dials.Load(), int64(3))
}
