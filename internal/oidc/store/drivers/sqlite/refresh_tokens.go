package sqlite

import (
	"context"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

type refreshTokensRepo struct {
	q dbtx
}

var _ store.RefreshTokens = (*refreshTokensRepo)(nil)

func (r *refreshTokensRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, client_id, user_id, auth_code_id, access_token_id, scopes, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ClientID, t.UserID, t.AuthCodeID, t.AccessTokenID, joinFields(t.Scopes),
		unix(t.ExpiresAt), unix(t.CreatedAt), nullUnix(t.RevokedAt),
	)
	return mapConflict(err)
}

func (r *refreshTokensRepo) FindByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		scopes    string
		expiresAt int64
		createdAt int64
		revokedAt = nullUnix(nil)
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, auth_code_id, access_token_id, scopes, expires_at, created_at, revoked_at
		FROM refresh_tokens WHERE id = ?`, id).Scan(
		&t.ID, &t.ClientID, &t.UserID, &t.AuthCodeID, &t.AccessTokenID, &scopes,
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

func (r *refreshTokensRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		unix(at), id,
	)
	return err
}

func (r *refreshTokensRepo) IsRevoked(ctx context.Context, id string) (bool, error) {
	var revokedAt = nullUnix(nil)
	err := r.q.QueryRowContext(ctx, `
		SELECT revoked_at FROM refresh_tokens WHERE id = ?`, id).Scan(&revokedAt)
	if err != nil {
		return false, mapNotFound(err)
	}
	return revokedAt.Valid, nil
}

func (r *refreshTokensRepo) RevokeByAuthCodeID(ctx context.Context, authCodeID string, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = ? WHERE auth_code_id = ? AND auth_code_id != '' AND revoked_at IS NULL`,
		unix(at), authCodeID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`, unix(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
