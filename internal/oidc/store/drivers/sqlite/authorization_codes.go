package sqlite

import (
	"context"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

type authCodesRepo struct {
	q dbtx
}

var _ store.AuthorizationCodes = (*authCodesRepo)(nil)

func (r *authCodesRepo) Create(ctx context.Context, c *domain.AuthorizationCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO authorization_codes (id, client_id, user_id, scopes, session_id, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClientID, c.UserID, joinFields(c.Scopes), c.SessionID,
		unix(c.ExpiresAt), unix(c.CreatedAt), nullUnix(c.RevokedAt),
	)
	return mapConflict(err)
}

func (r *authCodesRepo) FindByID(ctx context.Context, id string) (*domain.AuthorizationCode, error) {
	var (
		c         domain.AuthorizationCode
		scopes    string
		expiresAt int64
		createdAt int64
		revokedAt = nullUnix(nil)
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, scopes, session_id, expires_at, created_at, revoked_at
		FROM authorization_codes WHERE id = ?`, id).Scan(
		&c.ID, &c.ClientID, &c.UserID, &scopes, &c.SessionID,
		&expiresAt, &createdAt, &revokedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	c.Scopes = splitFields(scopes)
	c.ExpiresAt = fromUnix(expiresAt)
	c.CreatedAt = fromUnix(createdAt)
	c.RevokedAt = fromNullUnix(revokedAt)
	return &c, nil
}

func (r *authCodesRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE authorization_codes SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		unix(at), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either unknown or already revoked; distinguish for the caller.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
	}
	return nil
}

func (r *authCodesRepo) IsRevoked(ctx context.Context, id string) (bool, error) {
	var revokedAt = nullUnix(nil)
	err := r.q.QueryRowContext(ctx, `
		SELECT revoked_at FROM authorization_codes WHERE id = ?`, id).Scan(&revokedAt)
	if err != nil {
		return false, mapNotFound(err)
	}
	return revokedAt.Valid, nil
}

func (r *authCodesRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM authorization_codes WHERE expires_at < ?`, unix(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
