package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of the Provider interface for testing.
type MockProvider struct {
	mock.Mock
}

// Name is the mock implementation of the Name method.
func (m *MockProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

// Connect is the mock implementation of the Connect method.
func (m *MockProvider) Connect(ctx context.Context) (Connection, error) {
	args := m.Called(ctx)
	conn, _ := args.Get(0).(Connection)
	return conn, args.Error(1) //nolint:wrapcheck
}

// MockConnection is a mock implementation of the Connection interface for testing.
type MockConnection struct {
	mock.Mock
}

// Collection is the mock implementation of the Collection method.
func (m *MockConnection) Collection(name string) Collection {
	args := m.Called(name)
	coll, _ := args.Get(0).(Collection)
	return coll
}

// Ping is the mock implementation of the Ping method.
func (m *MockConnection) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockConnection) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// MockCollection is a mock implementation of the Collection interface for testing.
type MockCollection struct {
	mock.Mock
}

// Name is the mock implementation of the Name method.
func (m *MockCollection) Name() string {
	args := m.Called()
	return args.String(0)
}

// InsertOne is the mock implementation of the InsertOne method.
func (m *MockCollection) InsertOne(ctx context.Context, doc any) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// FindOne is the mock implementation of the FindOne method.
func (m *MockCollection) FindOne(ctx context.Context, filter Filter, out any) error {
	args := m.Called(ctx, filter, out)
	return args.Error(0) //nolint:wrapcheck
}

// Count is the mock implementation of the Count method.
func (m *MockCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	args := m.Called(ctx, filter)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1) //nolint:wrapcheck
}
