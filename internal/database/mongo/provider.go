// Package mongo implements the database abstractions on top of the official
// MongoDB driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/database"
)

// ProviderName identifies this backend in errors, logs and metrics.
const ProviderName = "mongo"

const defaultConnectTimeout = 10 * time.Second

// Config carries the connection string and dial limits.
type Config struct {
	// URI is the MongoDB connection string, e.g. mongodb://localhost:27017/test.
	URI string
	// Database is used when the URI does not name a database.
	Database string
	// ConnectTimeout bounds dialing and the initial ping.
	ConnectTimeout time.Duration
}

// Provider dials MongoDB. It holds no connection state.
type Provider struct {
	uri      string
	database string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewProvider validates cfg and returns a Provider. The URI is parsed once here
// so a malformed connection string fails at startup rather than on first request.
func NewProvider(cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo connection string is required")
	}
	dbName, err := databaseName(cfg.URI, cfg.Database)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		uri:      cfg.URI,
		database: dbName,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// databaseName returns the database named in uri, falling back to fallback.
func databaseName(uri, fallback string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("parse mongo connection string: %w", err)
	}
	if cs.Database != "" {
		return cs.Database, nil
	}
	if fallback == "" {
		return "", fmt.Errorf("mongo connection string names no database and database.name is empty")
	}
	return fallback, nil
}

// Name implements database.Provider.
func (p *Provider) Name() string { return ProviderName }

// Database returns the database collections are read from.
func (p *Provider) Database() string { return p.database }

// Connect dials MongoDB and pings the primary so that unreachable or
// unauthorized servers fail here rather than on the first query.
func (p *Provider) Connect(ctx context.Context) (database.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(p.uri).
		SetConnectTimeout(p.timeout).
		SetServerSelectionTimeout(p.timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, database.NewConnectionError(ProviderName, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		if derr := client.Disconnect(context.Background()); derr != nil {
			p.logger.Warn("disconnect after failed ping", zap.Error(derr))
		}
		return nil, database.NewConnectionError(ProviderName, err)
	}
	p.logger.Debug("mongo connected", zap.String("database", p.database))
	return &Connection{client: client, db: client.Database(p.database)}, nil
}

// Connection wraps a connected client and its default database.
type Connection struct {
	client *mongo.Client
	db     *mongo.Database
}

// Collection implements database.Connection.
func (c *Connection) Collection(name string) database.Collection {
	return &Collection{coll: c.db.Collection(name)}
}

// Ping implements database.Connection.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close implements database.Connection.
func (c *Connection) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}

// Collection adapts *mongo.Collection to database.Collection.
type Collection struct {
	coll *mongo.Collection
}

// Name implements database.Collection.
func (c *Collection) Name() string { return c.coll.Name() }

// InsertOne implements database.Collection.
func (c *Collection) InsertOne(ctx context.Context, doc any) (string, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", queryError("insert into", c.coll.Name(), err)
	}
	return formatID(res.InsertedID), nil
}

// FindOne implements database.Collection.
func (c *Collection) FindOne(ctx context.Context, filter database.Filter, out any) error {
	err := c.coll.FindOne(ctx, toBSON(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return database.ErrNoDocuments
	}
	if err != nil {
		return queryError("find in", c.coll.Name(), err)
	}
	return nil
}

// Count implements database.Collection.
func (c *Collection) Count(ctx context.Context, filter database.Filter) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, toBSON(filter))
	if err != nil {
		return 0, queryError("count in", c.coll.Name(), err)
	}
	return n, nil
}

// queryError wraps err, promoting lost or unreachable servers to a
// *database.ConnectionError.
func queryError(op, coll string, err error) error {
	err = fmt.Errorf("%s %s: %w", op, coll, err)
	var selErr topology.ServerSelectionError
	if mongo.IsNetworkError(err) || errors.As(err, &selErr) {
		return database.NewConnectionError(ProviderName, err)
	}
	return err
}

func toBSON(filter database.Filter) bson.M {
	m := bson.M{}
	for k, v := range filter {
		m[k] = v
	}
	return m
}

func formatID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
