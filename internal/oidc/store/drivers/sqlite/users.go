package sqlite

import (
	"context"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

type usersRepo struct {
	q dbtx
}

var _ store.Users = (*usersRepo)(nil)

func (r *usersRepo) Create(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, username, name, given_name, family_name, email, email_verified, phone, phone_verified, address, locale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, u.GivenName, u.FamilyName,
		u.Email, u.EmailVerified, u.Phone, u.PhoneVerified,
		u.Address, u.Locale,
		unix(u.CreatedAt), unix(u.UpdatedAt),
	)
	return mapConflict(err)
}

func (r *usersRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
		updatedAt int64
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, username, name, given_name, family_name, email, email_verified, phone, phone_verified, address, locale, created_at, updated_at
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Username, &u.Name, &u.GivenName, &u.FamilyName,
		&u.Email, &u.EmailVerified, &u.Phone, &u.PhoneVerified,
		&u.Address, &u.Locale,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}

	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return &u, nil
}
