package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/coreapi/internal/database"
)

// undefinedTable is the SQLSTATE Postgres returns for a missing relation.
const undefinedTable = "42P01"

// Collection stores documents as JSONB rows in a table named after the collection.
type Collection struct {
	pool Pool
	name string
}

// Name implements database.Collection.
func (c *Collection) Name() string { return c.name }

func (c *Collection) table() string {
	return pgx.Identifier{c.name}.Sanitize()
}

// InsertOne implements database.Collection.
func (c *Collection) InsertOne(ctx context.Context, doc any) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document to JSON: %w", err)
	}
	query := `INSERT INTO ` + c.table() + ` (doc) VALUES ($1::jsonb) RETURNING id::text`

	var id string
	if err := c.pool.QueryRow(ctx, query, string(body)).Scan(&id); err != nil {
		return "", queryError(fmt.Errorf("failed to insert into %s: %w", c.name, err))
	}
	return id, nil
}

// FindOne implements database.Collection. A missing table reads as an empty
// collection and yields database.ErrNoDocuments.
func (c *Collection) FindOne(ctx context.Context, filter database.Filter, out any) error {
	match, err := filterJSON(filter)
	if err != nil {
		return err
	}
	query := `SELECT id::text, doc FROM ` + c.table() + ` WHERE doc @> $1::jsonb LIMIT 1`

	var (
		id  string
		doc []byte
	)
	err = c.pool.QueryRow(ctx, query, match).Scan(&id, &doc)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isUndefinedTable(err):
		return database.ErrNoDocuments
	case err != nil:
		return queryError(fmt.Errorf("failed to query %s: %w", c.name, err))
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("failed to decode document from %s: %w", c.name, err)
	}
	if setter, ok := out.(interface{ SetID(string) }); ok {
		setter.SetID(id)
	}
	return nil
}

// Count implements database.Collection. A missing table counts as zero.
func (c *Collection) Count(ctx context.Context, filter database.Filter) (int64, error) {
	match, err := filterJSON(filter)
	if err != nil {
		return 0, err
	}
	query := `SELECT count(*) FROM ` + c.table() + ` WHERE doc @> $1::jsonb`

	var n int64
	err = c.pool.QueryRow(ctx, query, match).Scan(&n)
	switch {
	case isUndefinedTable(err):
		return 0, nil
	case err != nil:
		return 0, queryError(fmt.Errorf("failed to count %s: %w", c.name, err))
	}
	return n, nil
}

func filterJSON(filter database.Filter) (string, error) {
	if filter == nil {
		filter = database.Filter{}
	}
	body, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("failed to marshal filter to JSON: %w", err)
	}
	return string(body), nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

// queryError promotes errors from a lost or unreachable server to a
// *database.ConnectionError.
func queryError(err error) error {
	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return database.NewConnectionError(ProviderName, err)
	}
	return err
}
