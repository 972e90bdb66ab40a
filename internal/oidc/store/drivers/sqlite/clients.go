package sqlite

import (
	"context"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

type clientsRepo struct {
	q dbtx
}

var _ store.Clients = (*clientsRepo)(nil)

func (r *clientsRepo) Create(ctx context.Context, c *domain.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (id, name, secret_hash, redirect_uris, scopes, grant_types, jwks, protected, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.SecretHash,
		joinFields(c.RedirectURIs), joinFields(c.Scopes), joinFields(c.GrantTypes),
		c.JWKS, c.Protected, c.Enabled,
		unix(c.CreatedAt), unix(c.UpdatedAt),
	)
	return mapConflict(err)
}

func (r *clientsRepo) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	return r.scanOne(ctx, `
		SELECT id, name, secret_hash, redirect_uris, scopes, grant_types, jwks, protected, enabled, created_at, updated_at
		FROM clients WHERE id = ?`, id)
}

func (r *clientsRepo) GetEnabled(ctx context.Context, id string) (*domain.Client, error) {
	return r.scanOne(ctx, `
		SELECT id, name, secret_hash, redirect_uris, scopes, grant_types, jwks, protected, enabled, created_at, updated_at
		FROM clients WHERE id = ? AND enabled = 1`, id)
}

func (r *clientsRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Client, error) {
	var (
		c            domain.Client
		redirectURIs string
		scopes       string
		grantTypes   string
		createdAt    int64
		updatedAt    int64
	)

	err := r.q.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.Name, &c.SecretHash,
		&redirectURIs, &scopes, &grantTypes,
		&c.JWKS, &c.Protected, &c.Enabled,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	c.RedirectURIs = splitFields(redirectURIs)
	c.Scopes = splitFields(scopes)
	c.GrantTypes = splitFields(grantTypes)
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return &c, nil
}
