package grant

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
)

// ImplicitGrant delivers tokens straight from the authorization endpoint in
// the redirect fragment (OIDC implicit flow). It never serves the token
// endpoint.
type ImplicitGrant struct {
	deps *Deps
}

// NewImplicitGrant wires the grant to its collaborators.
func NewImplicitGrant(deps *Deps) *ImplicitGrant {
	return &ImplicitGrant{deps: deps}
}

func (g *ImplicitGrant) Name() string { return "implicit" }

func (g *ImplicitGrant) CanRespondToAuthorizationRequest(ar *AuthorizationRequest) bool {
	return slices.Contains(ar.ResponseTypes, "id_token") &&
		!slices.Contains(ar.ResponseTypes, "code")
}

func (g *ImplicitGrant) CanRespondToAccessTokenRequest(grantType string) bool {
	return false
}

func (g *ImplicitGrant) RespondToAccessTokenRequest(ctx context.Context, tr *TokenRequest) (*TokenResponse, error) {
	return nil, oidcerr.ErrUnsupportedGrantType.WithDescription("the implicit grant has no token endpoint exchange")
}

// CompleteAuthorizationRequest issues the ID token (and, for
// "id_token token", an access token) and returns the fragment redirect.
// Scopes are finalized against the client's registration here, the same
// way the code flow finalizes them at exchange.
func (g *ImplicitGrant) CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest, sess *domain.Session) (*url.URL, error) {
	now := g.deps.now()
	scopes := finalizeScopes(ar.Client, ar.Scopes)
	withAccessToken := slices.Contains(ar.ResponseTypes, "token")

	fragment := url.Values{}

	var access string
	if withAccessToken {
		var err error
		access, _, err = g.deps.issueAccessToken(ctx, g.deps.Store, ar.Client, sess.UserID, sess.ID, "", scopes, now)
		if err != nil {
			return nil, err
		}
		fragment.Set("access_token", access)
		fragment.Set("token_type", "Bearer")
		fragment.Set("expires_in", strconv.FormatInt(int64(g.deps.AccessTokenTTL.Seconds()), 10))
		fragment.Set("scope", strings.Join(scopes, " "))
	}

	idToken, err := g.deps.IDTokens.Issue(ctx, IDTokenParams{
		ClientID:    ar.Client.ID,
		UserID:      sess.UserID,
		Scopes:      scopes,
		Nonce:       ar.Nonce,
		AcrValues:   ar.AcrValues,
		Session:     sess,
		AccessToken: access,
		Claims:      ar.Claims,
		EmbedClaims: ar.AddClaimsToIDToken,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}
	fragment.Set("id_token", idToken)

	if ar.State != "" {
		fragment.Set("state", ar.State)
	}

	redirect, err := url.Parse(ar.RedirectURI)
	if err != nil {
		return nil, err
	}
	redirect.Fragment = fragment.Encode()
	return redirect, nil
}
