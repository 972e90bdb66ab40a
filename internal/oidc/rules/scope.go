package rules

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
)

// ScopeRule parses the scope parameter and validates every identifier
// against the scope registry. Duplicates are preserved; deduplication is a
// finalization concern, not a parsing one. The default scope applies when
// the parameter is absent.
type ScopeRule struct {
	Scopes store.Scopes
}

func (r *ScopeRule) Key() Key         { return KeyScopes }
func (r *ScopeRule) DependsOn() []Key { return []Key{KeyClient} }

func (r *ScopeRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	if _, err := bag.MustGet(KeyClient); err != nil {
		return nil, err
	}

	delim := req.DataString(DataScopeDelimiter)
	if delim == "" {
		delim = " "
	}

	raw := req.Param("scope")
	if raw == "" {
		raw = req.DataString(DataDefaultScope)
	}

	var scopes []string
	for _, s := range strings.Split(raw, delim) {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}

	for _, identifier := range scopes {
		if _, err := r.Scopes.FindByIdentifier(ctx, identifier); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, oidcerr.ErrInvalidScope.WithDescription("unknown scope %q", identifier)
			}
			return nil, err
		}
	}

	result := NewResult(KeyScopes, scopes)
	return &result, nil
}

// RequiredOpenIDScopeRule enforces the presence of the openid scope for
// OIDC flows.
type RequiredOpenIDScopeRule struct{}

func (r *RequiredOpenIDScopeRule) Key() Key         { return KeyOpenID }
func (r *RequiredOpenIDScopeRule) DependsOn() []Key { return []Key{KeyScopes} }

func (r *RequiredOpenIDScopeRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	if _, err := bag.MustGet(KeyScopes); err != nil {
		return nil, err
	}

	if !slices.Contains(bag.Strings(KeyScopes), domain.ScopeOpenID) {
		return nil, oidcerr.ErrInvalidScope.WithDescription("the openid scope is required")
	}

	result := NewResult(KeyOpenID, true)
	return &result, nil
}

// OfflineAccessRule gates the offline_access scope on client registration.
// Requesting it without being provisioned for it is rejected outright;
// silent refresh-token issuance to unprovisioned clients is what this rule
// exists to prevent.
type OfflineAccessRule struct{}

func (r *OfflineAccessRule) Key() Key         { return KeyOfflineAccess }
func (r *OfflineAccessRule) DependsOn() []Key { return []Key{KeyClient, KeyScopes} }

func (r *OfflineAccessRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	client, err := ClientFromBag(bag)
	if err != nil {
		return nil, err
	}
	if _, err := bag.MustGet(KeyScopes); err != nil {
		return nil, err
	}

	requested := slices.Contains(bag.Strings(KeyScopes), domain.ScopeOfflineAccess)
	if requested && !client.HasScope(domain.ScopeOfflineAccess) {
		return nil, oidcerr.ErrInvalidScope.WithDescription("client is not registered for offline_access")
	}

	result := NewResult(KeyOfflineAccess, requested)
	return &result, nil
}
