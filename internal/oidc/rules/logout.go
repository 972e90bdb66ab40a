package rules

import (
	"context"
	"errors"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

// IDTokenHintRule verifies the id_token_hint parameter against this
// server's own signing keys. The hint identifies whose session a logout
// request is about; a hint we did not issue is rejected.
type IDTokenHintRule struct {
	Verifier jwtx.Verifier

	// Require rejects requests without a hint. Logout flows that validate
	// post_logout_redirect_uri need one to name the client.
	Require bool
}

func (r *IDTokenHintRule) Key() Key         { return KeyIDTokenHint }
func (r *IDTokenHintRule) DependsOn() []Key { return nil }

func (r *IDTokenHintRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	raw := req.Param("id_token_hint")
	if raw == "" {
		if r.Require {
			return nil, oidcerr.ErrInvalidRequest.WithDescription("id_token_hint is required")
		}
		result := NewResult(KeyIDTokenHint, (*jwtx.Claims)(nil))
		return &result, nil
	}

	claims, err := r.Verifier.Verify(raw)
	if err != nil {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("id_token_hint could not be verified")
	}

	result := NewResult(KeyIDTokenHint, &claims)
	return &result, nil
}

// PostLogoutRedirectURIRule validates post_logout_redirect_uri against the
// registration of the client named by the id_token_hint's audience. Exact
// matching, same as the authorization redirect_uri.
type PostLogoutRedirectURIRule struct {
	Clients store.Clients
}

func (r *PostLogoutRedirectURIRule) Key() Key         { return KeyPostLogoutRedirectURI }
func (r *PostLogoutRedirectURIRule) DependsOn() []Key { return []Key{KeyIDTokenHint} }

func (r *PostLogoutRedirectURIRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	hintRes, err := bag.MustGet(KeyIDTokenHint)
	if err != nil {
		return nil, err
	}

	uri := req.Param("post_logout_redirect_uri")
	if uri == "" {
		result := NewResult(KeyPostLogoutRedirectURI, "")
		return &result, nil
	}

	hint, _ := hintRes.Value().(*jwtx.Claims)
	if hint == nil {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("post_logout_redirect_uri requires an id_token_hint")
	}
	if len(hint.Audience) == 0 {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("id_token_hint has no audience")
	}

	client, err := r.Clients.GetEnabled(ctx, hint.Audience[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oidcerr.ErrInvalidRequest.WithDescription("id_token_hint audience is not a known client")
		}
		return nil, err
	}

	if !client.HasRedirectURI(uri) {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("post_logout_redirect_uri is not registered for this client")
	}

	result := NewResult(KeyPostLogoutRedirectURI, uri)
	return &result, nil
}
