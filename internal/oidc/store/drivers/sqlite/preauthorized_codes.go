package sqlite

import (
	"context"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

type preAuthCodesRepo struct {
	q dbtx
}

var _ store.PreAuthorizedCodes = (*preAuthCodesRepo)(nil)

func (r *preAuthCodesRepo) Create(ctx context.Context, c *domain.PreAuthorizedCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO preauthorized_codes (id, client_id, user_id, tx_code, authorization_details, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClientID, c.UserID, c.TxCode, c.AuthorizationDetails,
		unix(c.ExpiresAt), unix(c.CreatedAt), nullUnix(c.RevokedAt),
	)
	return mapConflict(err)
}

func (r *preAuthCodesRepo) FindByID(ctx context.Context, id string) (*domain.PreAuthorizedCode, error) {
	var (
		c         domain.PreAuthorizedCode
		expiresAt int64
		createdAt int64
		revokedAt = nullUnix(nil)
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, client_id, user_id, tx_code, authorization_details, expires_at, created_at, revoked_at
		FROM preauthorized_codes WHERE id = ?`, id).Scan(
		&c.ID, &c.ClientID, &c.UserID, &c.TxCode, &c.AuthorizationDetails,
		&expiresAt, &createdAt, &revokedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	c.ExpiresAt = fromUnix(expiresAt)
	c.CreatedAt = fromUnix(createdAt)
	c.RevokedAt = fromNullUnix(revokedAt)
	return &c, nil
}

func (r *preAuthCodesRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE preauthorized_codes SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		unix(at), id,
	)
	return err
}

func (r *preAuthCodesRepo) IsRevoked(ctx context.Context, id string) (bool, error) {
	var revokedAt = nullUnix(nil)
	err := r.q.QueryRowContext(ctx, `
		SELECT revoked_at FROM preauthorized_codes WHERE id = ?`, id).Scan(&revokedAt)
	if err != nil {
		return false, mapNotFound(err)
	}
	return revokedAt.Valid, nil
}

func (r *preAuthCodesRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM preauthorized_codes WHERE expires_at < ?`, unix(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
