// Package pool bounds the number of concurrently open driver connections
// and lends them out one caller at a time.
package pool

import (
	"context"
	"errors"
	"log/slog"

	commons "github.com/jolestar/go-commons-pool"

	"github.com/dataferry/connector/config"
	"github.com/dataferry/connector/connerr"
	"github.com/dataferry/connector/driver"
	"github.com/dataferry/connector/retry"
)

// Pool is a bounded connection pool. Opening a new connection goes through
// the connect retry policy; a connection marked broken is destroyed and its
// slot refilled lazily on a later acquire.
type Pool struct {
	cfg    config.Config
	inner  *commons.ObjectPool
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for retry and release diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// New creates a Pool of at most cfg.PoolSize connections dialed through
// connector. The pool itself opens nothing until the first Acquire.
func New(cfg config.Config, connector driver.Connector, opts ...Option) *Pool {
	p := &Pool{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	policy := retry.New(cfg.MaxRetries, cfg.RetryDelay).WithLogger(p.logger)

	factory := commons.NewPooledObjectFactory(
		func(ctx context.Context) (interface{}, error) {
			return retry.DoWithResult(ctx, policy, func() (driver.Conn, error) {
				return connector.Connect(ctx, cfg)
			})
		},
		func(ctx context.Context, obj *commons.PooledObject) error {
			return obj.Object.(driver.Conn).Close()
		},
		func(ctx context.Context, obj *commons.PooledObject) bool {
			return obj.Object.(driver.Conn).Ping(ctx) == nil
		},
		nil,
		nil,
	)

	poolCfg := commons.NewDefaultPoolConfig()
	poolCfg.MaxTotal = cfg.PoolSize
	poolCfg.MaxIdle = cfg.PoolSize
	poolCfg.BlockWhenExhausted = true
	// Stale idle connections are pinged on borrow and replaced when dead.
	poolCfg.TestOnBorrow = true

	p.inner = commons.NewObjectPool(context.Background(), factory, poolCfg)
	return p
}

// Acquire lends out one connection, opening a new one when the pool has
// spare capacity. It waits at most cfg.PoolTimeout before failing with a
// ConnectionError wrapping ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (driver.Conn, error) {
	if p.cfg.PoolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PoolTimeout)
		defer cancel()
	}

	obj, err := p.inner.BorrowObject(ctx)
	if err != nil {
		var re *retry.Error
		if errors.As(err, &re) {
			return nil, &connerr.ConnectionError{Attempts: re.Attempts, Cause: re.Cause}
		}
		// The borrow either hit the pool timeout itself or was still
		// waiting when the deadline fired.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &connerr.ConnectionError{Cause: connerr.ErrPoolExhausted}
		}
		return nil, &connerr.ConnectionError{Cause: err}
	}
	return obj.(driver.Conn), nil
}

// Release returns a healthy connection to the pool.
func (p *Pool) Release(conn driver.Conn) {
	if err := p.inner.ReturnObject(context.Background(), conn); err != nil && p.logger != nil {
		p.logger.Error("error returning connection to pool", "error", err)
	}
}

// ReleaseBroken destroys a connection instead of returning it. The freed
// slot is refilled by a fresh connection on a later Acquire.
func (p *Pool) ReleaseBroken(conn driver.Conn) {
	if err := p.inner.InvalidateObject(context.Background(), conn); err != nil && p.logger != nil {
		p.logger.Error("error invalidating connection", "error", err)
	}
}

// WithConn runs fn with a borrowed connection and guarantees the connection
// is given back on every exit path. A connectivity-class failure marks the
// connection broken.
func (p *Pool) WithConn(ctx context.Context, fn func(driver.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(conn)
	if err != nil && connerr.IsConnectivity(err) {
		p.ReleaseBroken(conn)
	} else {
		p.Release(conn)
	}
	return err
}

// Size returns the configured maximum number of connections.
func (p *Pool) Size() int {
	return p.cfg.PoolSize
}

// Active returns the number of connections currently lent out.
func (p *Pool) Active() int {
	return p.inner.GetNumActive()
}

// Idle returns the number of connections parked in the pool.
func (p *Pool) Idle() int {
	return p.inner.GetNumIdle()
}

// Close destroys all idle connections and rejects further acquires.
func (p *Pool) Close() {
	p.inner.Close(context.Background())
}
