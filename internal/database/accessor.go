package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/metrics"
)

// Accessor hands out collections from a single cached connection. The cache is
// a one-slot critical section: concurrent callers that find it empty produce a
// single Connect, and waiting for the slot honours the caller's context.
//
// A cached connection is reused without a liveness check. Collections handed
// out by the Accessor drop their own connection from the cache when a query
// fails with a *ConnectionError; CheckHealth and Invalidate also force a
// reconnect.
type Accessor struct {
	provider Provider
	logger   *zap.Logger

	slot   chan struct{}
	conn   Connection
	closed bool
}

// NewAccessor wires an Accessor to provider.
func NewAccessor(provider Provider, logger *zap.Logger) *Accessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accessor{
		provider: provider,
		logger:   logger,
		slot:     make(chan struct{}, 1),
	}
}

func (a *Accessor) lock(ctx context.Context) error {
	select {
	case a.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for connection slot: %w", ctx.Err())
	}
}

func (a *Accessor) unlock() { <-a.slot }

// Collection returns the named collection from the cached connection, dialing
// first if nothing is cached. Provider failures are returned unchanged.
func (a *Accessor) Collection(ctx context.Context, name string) (Collection, error) {
	if err := a.lock(ctx); err != nil {
		return nil, err
	}
	defer a.unlock()

	conn, err := a.connectLocked(ctx)
	if err != nil {
		return nil, err
	}
	return &boundCollection{Collection: conn.Collection(name), conn: conn, owner: a}, nil
}

// connectLocked returns the cached connection or dials a new one. The slot must be held.
func (a *Accessor) connectLocked(ctx context.Context) (Connection, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	if a.closed || a.provider == nil {
		return nil, ErrNotInitialized
	}

	conn, err := a.provider.Connect(ctx)
	if err != nil {
		metrics.ObserveConnectAttempt(a.provider.Name(), false)
		a.logger.Warn("database connect failed", zap.String("provider", a.provider.Name()), zap.Error(err))
		return nil, err
	}
	if conn == nil {
		metrics.ObserveConnectAttempt(a.provider.Name(), false)
		return nil, ErrNotInitialized
	}
	metrics.ObserveConnectAttempt(a.provider.Name(), true)
	a.logger.Info("database connected", zap.String("provider", a.provider.Name()))
	a.conn = conn
	return conn, nil
}

// Invalidate drops the cached connection so the next call reconnects.
func (a *Accessor) Invalidate(ctx context.Context) error {
	if err := a.lock(ctx); err != nil {
		return err
	}
	defer a.unlock()
	a.dropLocked(ctx)
	return nil
}

// Discard drops stale from the cache if it is still the cached connection and
// reports whether it did. A connection cached after stale was handed out is
// left alone.
func (a *Accessor) Discard(ctx context.Context, stale Connection) (bool, error) {
	if stale == nil {
		return false, nil
	}
	if err := a.lock(ctx); err != nil {
		return false, err
	}
	defer a.unlock()
	if a.conn != stale {
		return false, nil
	}
	a.dropLocked(ctx)
	return true, nil
}

func (a *Accessor) dropLocked(ctx context.Context) {
	if a.conn == nil {
		return
	}
	if err := a.conn.Close(ctx); err != nil {
		a.logger.Warn("closing stale connection failed", zap.Error(err))
	}
	a.conn = nil
}

// CheckHealth pings the cached connection, dialing if none is cached. A failed
// ping invalidates the cache and is reported as a *ConnectionError.
func (a *Accessor) CheckHealth(ctx context.Context) error {
	if err := a.lock(ctx); err != nil {
		return err
	}
	defer a.unlock()

	conn, err := a.connectLocked(ctx)
	if err != nil {
		return err
	}
	if err := conn.Ping(ctx); err != nil {
		a.logger.Warn("database ping failed; invalidating connection", zap.Error(err))
		a.dropLocked(ctx)
		return NewConnectionError(a.provider.Name(), err)
	}
	return nil
}

// Close disconnects the cached connection. Later calls fail with ErrNotInitialized.
func (a *Accessor) Close(ctx context.Context) error {
	if err := a.lock(ctx); err != nil {
		return err
	}
	defer a.unlock()

	a.closed = true
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close(ctx)
	a.conn = nil
	if err != nil {
		return fmt.Errorf("close database connection: %w", err)
	}
	return nil
}

// boundCollection remembers the connection it was derived from so connection
// failures only evict that connection.
type boundCollection struct {
	Collection
	conn  Connection
	owner *Accessor
}

func (c *boundCollection) InsertOne(ctx context.Context, doc any) (string, error) {
	id, err := c.Collection.InsertOne(ctx, doc)
	return id, c.check(ctx, err)
}

func (c *boundCollection) FindOne(ctx context.Context, filter Filter, out any) error {
	return c.check(ctx, c.Collection.FindOne(ctx, filter, out))
}

func (c *boundCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	n, err := c.Collection.Count(ctx, filter)
	return n, c.check(ctx, err)
}

func (c *boundCollection) check(ctx context.Context, err error) error {
	if !IsConnectionError(err) {
		return err
	}
	// The request context may already be done; eviction must still happen.
	dropped, derr := c.owner.Discard(context.WithoutCancel(ctx), c.conn)
	if derr != nil {
		c.owner.logger.Warn("discard failed connection", zap.Error(derr))
	} else if dropped {
		c.owner.logger.Warn("database connection lost; dropped from cache", zap.Error(err))
	}
	return err
}
