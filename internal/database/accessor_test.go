// Package database_test contains unit tests for the database package.
package database_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/coreapi/internal/database"
)

func newConnWithCollection(name string) (*database.MockConnection, *database.MockCollection) {
	coll := &database.MockCollection{}
	coll.On("Name").Return(name)
	conn := &database.MockConnection{}
	conn.On("Collection", name).Return(coll)
	return conn, coll
}

func TestAccessor_Collection_ConnectsOnceAndReuses(t *testing.T) {
	t.Parallel()

	conn, coll := newConnWithCollection("users")
	provider := &database.MockProvider{}
	provider.On("Name").Return("mock")
	provider.On("Connect", mock.Anything).Return(conn, nil).Once()

	accessor := database.NewAccessor(provider, nil)

	got, err := accessor.Collection(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "users", got.Name())
	coll.AssertCalled(t, "Name")

	got, err = accessor.Collection(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "users", got.Name())

	provider.AssertNumberOfCalls(t, "Connect", 1)
	conn.AssertNumberOfCalls(t, "Collection", 2)
	conn.AssertNotCalled(t, "Ping", mock.Anything)
}

func TestAccessor_Invalidate_TriggersExactlyOneReconnect(t *testing.T) {
	t.Parallel()

	first, _ := newConnWithCollection("users")
	first.On("Close", mock.Anything).Return(nil).Once()
	second, _ := newConnWithCollection("users")

	provider := &database.MockProvider{}
	provider.On("Name").Return("mock")
	provider.On("Connect", mock.Anything).Return(first, nil).Once()
	provider.On("Connect", mock.Anything).Return(second, nil).Once()

	accessor := database.NewAccessor(provider, nil)
	ctx := context.Background()

	_, err := accessor.Collection(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, accessor.Invalidate(ctx))

	_, err = accessor.Collection(ctx, "users")
	require.NoError(t, err)
	_, err = accessor.Collection(ctx, "users")
	require.NoError(t, err)

	provider.AssertNumberOfCalls(t, "Connect", 2)
	first.AssertNumberOfCalls(t, "Close", 1)
	second.AssertNumberOfCalls(t, "Collection", 2)
}

func TestAccessor_Collection_PropagatesConnectionError(t *testing.T) {
	t.Parallel()

	dialErr := database.NewConnectionError("mock", errors.New("connection refused"))
	provider := &database.MockProvider{}
	provider.On("Name").Return("mock")
	provider.On("Connect", mock.Anything).Return(nil, dialErr)

	accessor := database.NewAccessor(provider, nil)

	coll, err := accessor.Collection(context.Background(), "users")
	require.Error(t, err)
	assert.Nil(t, coll)
	assert.True(t, database.IsConnectionError(err))

	var connErr *database.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "mock", connErr.Provider)
	assert.Contains(t, err.Error(), "connection refused")

	// No handle is cached after a failure, so the next call dials again.
	_, err = accessor.Collection(context.Background(), "users")
	require.Error(t, err)
	provider.AssertNumberOfCalls(t, "Connect", 2)
}

func TestAccessor_Collection_NotInitialized(t *testing.T) {
	t.Parallel()

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()
		accessor := database.NewAccessor(nil, nil)
		_, err := accessor.Collection(context.Background(), "users")
		require.ErrorIs(t, err, database.ErrNotInitialized)
	})

	t.Run("provider returned nil handle", func(t *testing.T) {
		t.Parallel()
		provider := &database.MockProvider{}
		provider.On("Name").Return("mock")
		provider.On("Connect", mock.Anything).Return(nil, nil)
		accessor := database.NewAccessor(provider, nil)
		_, err := accessor.Collection(context.Background(), "users")
		require.ErrorIs(t, err, database.ErrNotInitialized)
	})

	t.Run("closed accessor", func(t *testing.T) {
		t.Parallel()
		conn, _ := newConnWithCollection("users")
		conn.On("Close", mock.Anything).Return(nil)
		provider := &database.MockProvider{}
		provider.On("Name").Return("mock")
		provider.On("Connect", mock.Anything).Return(conn, nil).Once()
		accessor := database.NewAccessor(provider, nil)

		_, err := accessor.Collection(context.Background(), "users")
		require.NoError(t, err)
		require.NoError(t, accessor.Close(context.Background()))

		_, err = accessor.Collection(context.Background(), "users")
		require.ErrorIs(t, err, database.ErrNotInitialized)
		provider.AssertNumberOfCalls(t, "Connect", 1)
	})
}

func TestAccessor_CheckHealth(t *testing.T) {
	t.Parallel()

	t.Run("healthy connection is kept", func(t *testing.T) {
		t.Parallel()
		conn, _ := newConnWithCollection("users")
		conn.On("Ping", mock.Anything).Return(nil)
		provider := &database.MockProvider{}
		provider.On("Name").Return("mock")
		provider.On("Connect", mock.Anything).Return(conn, nil).Once()
		accessor := database.NewAccessor(provider, nil)

		require.NoError(t, accessor.CheckHealth(context.Background()))
		require.NoError(t, accessor.CheckHealth(context.Background()))
		_, err := accessor.Collection(context.Background(), "users")
		require.NoError(t, err)
		provider.AssertNumberOfCalls(t, "Connect", 1)
	})

	t.Run("failed ping invalidates", func(t *testing.T) {
		t.Parallel()
		stale, _ := newConnWithCollection("users")
		stale.On("Ping", mock.Anything).Return(errors.New("socket closed"))
		stale.On("Close", mock.Anything).Return(nil)
		fresh, _ := newConnWithCollection("users")

		provider := &database.MockProvider{}
		provider.On("Name").Return("mock")
		provider.On("Connect", mock.Anything).Return(stale, nil).Once()
		provider.On("Connect", mock.Anything).Return(fresh, nil).Once()
		accessor := database.NewAccessor(provider, nil)

		err := accessor.CheckHealth(context.Background())
		require.Error(t, err)
		assert.True(t, database.IsConnectionError(err))
		stale.AssertNumberOfCalls(t, "Close", 1)

		_, err = accessor.Collection(context.Background(), "users")
		require.NoError(t, err)
		provider.AssertNumberOfCalls(t, "Connect", 2)
		fresh.AssertNumberOfCalls(t, "Collection", 1)
	})
}

// countingProvider dials slowly so that concurrent first callers overlap.
type countingProvider struct {
	dials atomic.Int32
	conn  database.Connection
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Connect(_ context.Context) (database.Connection, error) {
	p.dials.Add(1)
	time.Sleep(20 * time.Millisecond)
	return p.conn, nil
}

func TestAccessor_Collection_ConcurrentFirstCallersDialOnce(t *testing.T) {
	t.Parallel()

	conn, _ := newConnWithCollection("users")
	provider := &countingProvider{conn: conn}
	accessor := database.NewAccessor(provider, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := accessor.Collection(context.Background(), "users"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), provider.dials.Load())
}

// blockingProvider holds the slot until released.
type blockingProvider struct {
	release chan struct{}
	conn    database.Connection
}

func (p *blockingProvider) Name() string { return "blocking" }

func (p *blockingProvider) Connect(_ context.Context) (database.Connection, error) {
	<-p.release
	return p.conn, nil
}

func TestAccessor_Collection_HonoursContextWhileWaiting(t *testing.T) {
	t.Parallel()

	conn, _ := newConnWithCollection("users")
	provider := &blockingProvider{release: make(chan struct{}), conn: conn}
	accessor := database.NewAccessor(provider, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = accessor.Collection(context.Background(), "users")
	}()

	// Give the first caller time to take the slot.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := accessor.Collection(ctx, "users")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(provider.release)
	<-done
}

func TestAccessor_Close_ReportsCloseError(t *testing.T) {
	t.Parallel()

	conn, _ := newConnWithCollection("users")
	conn.On("Close", mock.Anything).Return(errors.New("disconnect failed"))
	provider := &database.MockProvider{}
	provider.On("Name").Return("mock")
	provider.On("Connect", mock.Anything).Return(conn, nil)
	accessor := database.NewAccessor(provider, nil)

	_, err := accessor.Collection(context.Background(), "users")
	require.NoError(t, err)

	err = accessor.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close database connection")
}

func TestAccessor_QueryConnectionErrorDropsOnlyItsConnection(t *testing.T) {
	t.Parallel()

	connErr := database.NewConnectionError("mock", errors.New("connection reset by peer"))
	first, firstColl := newConnWithCollection("users")
	firstColl.On("FindOne", mock.Anything, mock.Anything, mock.Anything).Return(connErr)
	first.On("Close", mock.Anything).Return(nil).Once()
	second, secondColl := newConnWithCollection("users")
	secondColl.On("Count", mock.Anything, mock.Anything).Return(int64(1), nil)

	provider := &database.MockProvider{}
	provider.On("Name").Return("mock")
	provider.On("Connect", mock.Anything).Return(first, nil).Once()
	provider.On("Connect", mock.Anything).Return(second, nil).Once()

	accessor := database.NewAccessor(provider, nil)
	ctx := context.Background()

	stale, err := accessor.Collection(ctx, "users")
	require.NoError(t, err)

	var out map[string]any
	err = stale.FindOne(ctx, database.Filter{"username": "a"}, &out)
	require.True(t, database.IsConnectionError(err))
	first.AssertNumberOfCalls(t, "Close", 1)

	fresh, err := accessor.Collection(ctx, "users")
	require.NoError(t, err)
	n, err := fresh.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// A second failure on the stale handle must not evict the new connection.
	err = stale.FindOne(ctx, nil, &out)
	require.True(t, database.IsConnectionError(err))
	second.AssertNotCalled(t, "Close", mock.Anything)

	_, err = accessor.Collection(ctx, "users")
	require.NoError(t, err)
	provider.AssertNumberOfCalls(t, "Connect", 2)
}

func TestAccessor_QueryErrorKeepsConnection(t *testing.T) {
	t.Parallel()

	conn, coll := newConnWithCollection("users")
	coll.On("InsertOne", mock.Anything, mock.Anything).Return("", errors.New("duplicate key"))

	provider := &database.MockProvider{}
	provider.On("Name").Return("mock")
	provider.On("Connect", mock.Anything).Return(conn, nil).Once()

	accessor := database.NewAccessor(provider, nil)
	got, err := accessor.Collection(context.Background(), "users")
	require.NoError(t, err)
	_, err = got.InsertOne(context.Background(), map[string]string{"username": "a"})
	require.EqualError(t, err, "duplicate key")

	conn.AssertNotCalled(t, "Close", mock.Anything)
	_, err = accessor.Collection(context.Background(), "users")
	require.NoError(t, err)
	provider.AssertNumberOfCalls(t, "Connect", 1)
}

func TestAccessor_Discard(t *testing.T) {
	t.Parallel()

	cached, _ := newConnWithCollection("users")
	cached.On("Close", mock.Anything).Return(nil).Once()
	other := &database.MockConnection{}

	provider := &database.MockProvider{}
	provider.On("Name").Return("mock")
	provider.On("Connect", mock.Anything).Return(cached, nil).Once()

	accessor := database.NewAccessor(provider, nil)
	ctx := context.Background()
	_, err := accessor.Collection(ctx, "users")
	require.NoError(t, err)

	dropped, err := accessor.Discard(ctx, nil)
	require.NoError(t, err)
	assert.False(t, dropped)

	dropped, err = accessor.Discard(ctx, other)
	require.NoError(t, err)
	assert.False(t, dropped)
	cached.AssertNotCalled(t, "Close", mock.Anything)

	dropped, err = accessor.Discard(ctx, cached)
	require.NoError(t, err)
	assert.True(t, dropped)
	cached.AssertNumberOfCalls(t, "Close", 1)
}
