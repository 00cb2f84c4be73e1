// Package database defines the connection and collection abstractions shared by
// request handlers. By depending on these interfaces, handlers stay decoupled from
// a specific document store; MongoDB and Postgres implementations live in
// sub-packages.
package database

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a collection is requested but no
	// connection exists and none could be established.
	ErrNotInitialized = errors.New("database connection not initialized")
	// ErrNoDocuments is returned by FindOne when nothing matches the filter.
	ErrNoDocuments = errors.New("no documents in result")
)

// Filter is an equality filter over top-level document fields.
type Filter map[string]any

// Collection is a named view over documents reachable through a Connection.
// It holds no state beyond its name and owning connection.
type Collection interface {
	// Name returns the collection name the handle was derived for.
	Name() string
	// InsertOne stores doc and returns the identifier assigned by the store.
	InsertOne(ctx context.Context, doc any) (string, error)
	// FindOne decodes the first document matching filter into out.
	// It returns ErrNoDocuments when nothing matches.
	FindOne(ctx context.Context, filter Filter, out any) error
	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Connection is a live session to the database.
type Connection interface {
	// Collection derives a handle for name. It does not validate that name exists.
	Collection(name string) Collection
	// Ping verifies the session is still usable.
	Ping(ctx context.Context) error
	// Close terminates the session and releases its resources.
	Close(ctx context.Context) error
}

// Provider establishes connections from a single, immutable connection string.
// Every Connect call dials; deduplication is the caller's concern.
type Provider interface {
	// Name identifies the backend, e.g. "mongo" or "postgres".
	Name() string
	// Connect dials the database. Failures are reported as *ConnectionError.
	Connect(ctx context.Context) (Connection, error)
}

// ConnectionError reports an unreachable or unauthorized database.
type ConnectionError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying driver error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err as a ConnectionError for provider.
func NewConnectionError(provider string, err error) error {
	return &ConnectionError{Provider: provider, Err: err}
}

// IsConnectionError reports whether err is, or wraps, a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
