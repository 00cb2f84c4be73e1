// Package users stores accounts in the "users" collection and checks
// credentials against them.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/coreapi/internal/database"
)

// CollectionName is the collection accounts are stored in.
const CollectionName = "users"

var (
	// ErrNotFound is returned when no account has the requested username.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when a username or password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned by Create for a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidInput is returned for an empty username or password.
	ErrInvalidInput = errors.New("username and password are required")
)

// User is a stored account.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"-"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"password_hash"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// SetID records the identifier assigned by stores that keep it outside the document.
func (u *User) SetID(id string) { u.ID = id }

// CollectionSource hands out collections. *database.Accessor satisfies it.
type CollectionSource interface {
	Collection(ctx context.Context, name string) (database.Collection, error)
}

// PasswordHasher produces salted password hashes and verifies them.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Matches(hash string, password []byte) bool
}

// Clock supplies creation timestamps.
type Clock interface {
	Now() time.Time
}

// Store reads and writes accounts.
type Store struct {
	source CollectionSource
	hasher PasswordHasher
	clock  Clock
}

// NewStore builds a Store.
func NewStore(source CollectionSource, hasher PasswordHasher, clock Clock) *Store {
	return &Store{source: source, hasher: hasher, clock: clock}
}

// Create stores a new account with a hashed password.
func (s *Store) Create(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}
	coll, err := s.source.Collection(ctx, CollectionName)
	if err != nil {
		return nil, err
	}
	n, err := coll.Count(ctx, database.Filter{"username": username})
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil, ErrUsernameTaken
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	id, err := coll.InsertOne(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return user, nil
}

// FindByUsername loads the account named username.
func (s *Store) FindByUsername(ctx context.Context, username string) (*User, error) {
	coll, err := s.source.Collection(ctx, CollectionName)
	if err != nil {
		return nil, err
	}
	var user User
	err = coll.FindOne(ctx, database.Filter{"username": strings.TrimSpace(username)}, &user)
	if errors.Is(err, database.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// Authenticate returns the account when password matches its stored hash.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Matches(user.PasswordHash, []byte(password)) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
