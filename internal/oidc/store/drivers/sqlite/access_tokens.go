package sqlite

import (
	"context"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

type accessTokensRepo struct {
	q dbtx
}

var _ store.AccessTokens = (*accessTokensRepo)(nil)

func (r *accessTokensRepo) Create(ctx context.Context, t *domain.AccessToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO access_tokens (id, client_id, user_id, auth_code_id, scopes, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, t.UserID, t.AuthCodeID, joinFields(t.Scopes),
		unix(t.ExpiresAt), unix(t.CreatedAt), nullUnix(t.RevokedAt),
	)
	return mapConflict(err)
}

func (r *accessTokensRepo) FindByID(ctx context.Context, id string) (*domain.AccessToken, error) {
	var (
		t         domain.AccessToken
		scopes    string
		expiresAt int64
		createdAt int64
		revokedAt = nullUnix(nil)
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, auth_code_id, scopes, expires_at, created_at, revoked_at
		FROM access_tokens WHERE id = ?`, id).Scan(
		&t.ID, &t.ClientID, &t.UserID, &t.AuthCodeID, &scopes,
		&expiresAt, &createdAt, &revokedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	t.Scopes = splitFields(scopes)
	t.ExpiresAt = fromUnix(expiresAt)
	t.CreatedAt = fromUnix(createdAt)
	t.RevokedAt = fromNullUnix(revokedAt)
	return &t, nil
}

func (r *accessTokensRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE access_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		unix(at), id,
	)
	return err
}

func (r *accessTokensRepo) IsRevoked(ctx context.Context, id string) (bool, error) {
	var revokedAt = nullUnix(nil)
	err := r.q.QueryRowContext(ctx, `
		SELECT revoked_at FROM access_tokens WHERE id = ?`, id).Scan(&revokedAt)
	if err != nil {
		return false, mapNotFound(err)
	}
	return revokedAt.Valid, nil
}

func (r *accessTokensRepo) RevokeByAuthCodeID(ctx context.Context, authCodeID string, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE access_tokens SET revoked_at = ? WHERE auth_code_id = ? AND auth_code_id != '' AND revoked_at IS NULL`,
		unix(at), authCodeID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *accessTokensRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM access_tokens WHERE expires_at < ?`, unix(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
