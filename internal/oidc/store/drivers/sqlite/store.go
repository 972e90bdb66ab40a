// Package sqlite is the sqlite-backed store driver. Queries are written by
// hand against database/sql; the schema lives in embedded migrations.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/tabsync/oidcd/internal/oidc/store"

	_ "modernc.org/sqlite"
)

// dbtx abstracts *sql.DB and *sql.Tx so repositories work in both scopes.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Clients() store.Clients                       { return &clientsRepo{q: s.db} }
func (s *Store) Users() store.Users                           { return &usersRepo{q: s.db} }
func (s *Store) Scopes() store.Scopes                         { return &scopesRepo{q: s.db} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return &authCodesRepo{q: s.db} }
func (s *Store) AccessTokens() store.AccessTokens             { return &accessTokensRepo{q: s.db} }
func (s *Store) RefreshTokens() store.RefreshTokens           { return &refreshTokensRepo{q: s.db} }
func (s *Store) PreAuthorizedCodes() store.PreAuthorizedCodes { return &preAuthCodesRepo{q: s.db} }
