package rules

import (
	"context"
	"errors"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

// ClientIDRule resolves the client_id parameter against the client
// registry. Disabled and unknown clients are indistinguishable to callers.
type ClientIDRule struct {
	Clients store.Clients
}

func (r *ClientIDRule) Key() Key         { return KeyClient }
func (r *ClientIDRule) DependsOn() []Key { return nil }

func (r *ClientIDRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	id := req.Param("client_id")
	if id == "" {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("client_id is required")
	}

	client, err := r.Clients.GetEnabled(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oidcerr.ErrInvalidClient.WithDescription("unknown client")
		}
		return nil, err
	}

	result := NewResult(KeyClient, client)
	return &result, nil
}

// ClientFromBag extracts the resolved client, for rules and grants that
// declared KeyClient as a dependency.
func ClientFromBag(bag *ResultBag) (*domain.Client, error) {
	res, err := bag.MustGet(KeyClient)
	if err != nil {
		return nil, err
	}
	client, ok := res.Value().(*domain.Client)
	if !ok || client == nil {
		return nil, &DependencyError{Key: KeyClient}
	}
	return client, nil
}
