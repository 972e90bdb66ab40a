package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and controls transaction scope so grants can make
// revoke-then-cascade a critical section.
type Store interface {
	Clients() Clients
	Users() Users
	Scopes() Scopes
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	PreAuthorizedCodes() PreAuthorizedCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	Close() error
}

// Tx is a transaction-scoped Store. Nested transactions are not supported.
type Tx interface {
	Store

	Commit() error
	Rollback() error
}

// Clients is the registered relying-party repository.
type Clients interface {
	// Create registers a client. Returns ErrAlreadyExists on duplicate ID.
	Create(ctx context.Context, c *domain.Client) error

	// FindByID returns the client regardless of enabled state.
	FindByID(ctx context.Context, id string) (*domain.Client, error)

	// GetEnabled returns the client only when it is enabled; disabled
	// clients come back as ErrNotFound so callers fail closed.
	GetEnabled(ctx context.Context, id string) (*domain.Client, error)
}

// Users is the end-user attribute repository.
type Users interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Scopes is the scope registry.
type Scopes interface {
	Create(ctx context.Context, s *domain.Scope) error
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Scope, error)
	List(ctx context.Context) ([]domain.Scope, error)
}

// AuthorizationCodes tracks issued codes for replay detection.
type AuthorizationCodes interface {
	// Create records an issued code. Returns ErrAlreadyExists when the
	// identifier collides so issuance can retry with a fresh one.
	Create(ctx context.Context, c *domain.AuthorizationCode) error

	FindByID(ctx context.Context, id string) (*domain.AuthorizationCode, error)

	// Revoke marks the code spent. Revoking an already-revoked code is not
	// an error; replay handling reads the prior state via IsRevoked.
	Revoke(ctx context.Context, id string, at time.Time) error

	IsRevoked(ctx context.Context, id string) (bool, error)

	// DeleteExpired removes codes whose expiry is before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// AccessTokens tracks issued access tokens by jti for cascade revocation.
type AccessTokens interface {
	Create(ctx context.Context, t *domain.AccessToken) error
	FindByID(ctx context.Context, id string) (*domain.AccessToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)

	// RevokeByAuthCodeID revokes every access token descended from the
	// given authorization code. Returns the number revoked.
	RevokeByAuthCodeID(ctx context.Context, authCodeID string, at time.Time) (int64, error)

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RefreshTokens tracks issued refresh tokens.
type RefreshTokens interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	FindByID(ctx context.Context, id string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)

	// RevokeByAuthCodeID revokes every refresh token descended from the
	// given authorization code. Returns the number revoked.
	RevokeByAuthCodeID(ctx context.Context, authCodeID string, at time.Time) (int64, error)

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PreAuthorizedCodes tracks out-of-band credential issuance codes.
type PreAuthorizedCodes interface {
	Create(ctx context.Context, c *domain.PreAuthorizedCode) error
	FindByID(ctx context.Context, id string) (*domain.PreAuthorizedCode, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
