package rules

import (
	"context"
	"net/url"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
)

// RedirectURIRule validates the redirect_uri parameter against the client's
// registration using exact string matching. When the parameter is absent
// and the client registered exactly one URI, that URI is used.
//
// A failure here must never cause a redirect; handlers special-case this
// per RFC 6749 §3.1.2.3.
type RedirectURIRule struct{}

func (r *RedirectURIRule) Key() Key         { return KeyRedirectURI }
func (r *RedirectURIRule) DependsOn() []Key { return []Key{KeyClient} }

func (r *RedirectURIRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	client, err := ClientFromBag(bag)
	if err != nil {
		return nil, err
	}

	uri := req.Param("redirect_uri")
	if uri == "" {
		if len(client.RedirectURIs) == 1 {
			result := NewResult(KeyRedirectURI, client.RedirectURIs[0])
			return &result, nil
		}
		return nil, oidcerr.ErrInvalidRequest.WithDescription("redirect_uri is required")
	}

	parsed, err := url.Parse(uri)
	if err != nil || !parsed.IsAbs() {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("redirect_uri must be an absolute URI")
	}
	if parsed.Fragment != "" {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("redirect_uri must not contain a fragment")
	}

	if !client.HasRedirectURI(uri) {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("redirect_uri is not registered for this client")
	}

	result := NewResult(KeyRedirectURI, uri)
	return &result, nil
}
