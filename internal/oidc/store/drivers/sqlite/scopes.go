package sqlite

import (
	"context"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

type scopesRepo struct {
	q dbtx
}

var _ store.Scopes = (*scopesRepo)(nil)

func (r *scopesRepo) Create(ctx context.Context, s *domain.Scope) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO scopes (identifier, description) VALUES (?, ?)`,
		s.Identifier, s.Description,
	)
	return mapConflict(err)
}

func (r *scopesRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.Scope, error) {
	var s domain.Scope
	err := r.q.QueryRowContext(ctx, `
		SELECT identifier, description FROM scopes WHERE identifier = ?`, identifier).
		Scan(&s.Identifier, &s.Description)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *scopesRepo) List(ctx context.Context) ([]domain.Scope, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT identifier, description FROM scopes ORDER BY identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Scope
	for rows.Next() {
		var s domain.Scope
		if err := rows.Scan(&s.Identifier, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
