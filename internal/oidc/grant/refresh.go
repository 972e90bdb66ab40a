package grant

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/token"
	"github.com/tabsync/oidcd/pkg/httpx"
)

// RefreshTokenGrant rotates refresh tokens (RFC 6749 §6). It fails closed:
// any doubt about the presented token, including storage errors while
// checking it, comes back as invalid_grant.
type RefreshTokenGrant struct {
	deps *Deps
}

// NewRefreshTokenGrant wires the grant to its collaborators.
func NewRefreshTokenGrant(deps *Deps) *RefreshTokenGrant {
	return &RefreshTokenGrant{deps: deps}
}

func (g *RefreshTokenGrant) Name() string { return TypeRefreshToken }

func (g *RefreshTokenGrant) CanRespondToAuthorizationRequest(ar *AuthorizationRequest) bool {
	return false
}

func (g *RefreshTokenGrant) CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest, sess *domain.Session) (*url.URL, error) {
	return nil, oidcerr.ErrInvalidRequest.WithDescription("the refresh_token grant does not serve authorization requests")
}

func (g *RefreshTokenGrant) CanRespondToAccessTokenRequest(grantType string) bool {
	return grantType == TypeRefreshToken
}

// RespondToAccessTokenRequest validates the presented refresh token,
// revokes it and issues a replacement family member.
func (g *RefreshTokenGrant) RespondToAccessTokenRequest(ctx context.Context, tr *TokenRequest) (*TokenResponse, error) {
	if !tr.Client.AllowsGrantType(TypeRefreshToken) {
		return nil, oidcerr.ErrUnauthorizedClient.WithDescription("client may not use the refresh_token grant")
	}

	sealed := tr.Param("refresh_token")
	if sealed == "" {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("refresh_token is required")
	}

	payload, err := g.deps.Sealer.OpenRefresh(sealed)
	if err != nil {
		return nil, oidcerr.ErrInvalidGrant.WithDescription("refresh token is invalid")
	}
	if payload.ClientID != tr.Client.ID {
		return nil, oidcerr.ErrInvalidGrant.WithDescription("refresh token was issued to another client")
	}

	now := g.deps.now()
	if payload.Expired(now) {
		return nil, oidcerr.ErrInvalidGrant.WithDescription("refresh token has expired")
	}

	scopes, err := narrowScopes(payload.Scopes, tr.Param("scope"))
	if err != nil {
		return nil, err
	}

	var resp *TokenResponse
	err = g.deps.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.RefreshTokens().FindByID(ctx, payload.ID)
		if err != nil {
			// ErrNotFound and storage failures alike: fail closed.
			return oidcerr.ErrInvalidGrant.WithDescription("refresh token is invalid")
		}
		if rec.Revoked() {
			return oidcerr.ErrInvalidGrant.WithDescription("refresh token has been revoked")
		}
		if now.After(rec.ExpiresAt) {
			return oidcerr.ErrInvalidGrant.WithDescription("refresh token has expired")
		}

		if err := tx.RefreshTokens().Revoke(ctx, payload.ID, now); err != nil {
			return oidcerr.ErrInvalidGrant.WithDescription("refresh token is invalid")
		}

		resp, err = g.rotate(ctx, tx, tr.Client, payload, scopes, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// rotate issues the replacement tokens inside the rotation transaction.
// The new refresh token keeps the original code lineage so a later replay
// of the ancestor code still reaches it.
func (g *RefreshTokenGrant) rotate(ctx context.Context, tx store.Tx, client *domain.Client, payload *token.RefreshPayload, scopes []string, now time.Time) (*TokenResponse, error) {
	access, accessRec, err := g.deps.issueAccessToken(ctx, tx, client, payload.UserID, payload.SessionID, payload.AuthCodeID, scopes, now)
	if err != nil {
		return nil, err
	}

	refresh, err := g.deps.issueRefreshToken(ctx, tx, client,
		payload.UserID, payload.SessionID, payload.AuthCodeID, accessRec.ID,
		payload.Scopes, payload.ACR, payload.AMR, payload.AuthTime, now)
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(g.deps.AccessTokenTTL.Seconds()),
		RefreshToken: refresh,
		Scope:        strings.Join(scopes, " "),
	}

	if slices.Contains(scopes, domain.ScopeOpenID) {
		idToken, err := g.deps.IDTokens.Issue(ctx, IDTokenParams{
			ClientID: client.ID,
			UserID:   payload.UserID,
			Scopes:   scopes,
			ACR:      payload.ACR,
			Session: &domain.Session{
				ID:       payload.SessionID,
				UserID:   payload.UserID,
				AuthTime: time.Unix(payload.AuthTime, 0),
				AMR:      payload.AMR,
			},
			AccessToken: access,
			Now:         now,
		})
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	return resp, nil
}

// narrowScopes applies the optional scope parameter: the request may keep
// or shrink the granted set, never grow it.
func narrowScopes(granted []string, requested string) ([]string, error) {
	if requested == "" {
		return granted, nil
	}
	narrowed := httpx.ParseSpaceDelimitedFields(requested)
	for _, s := range narrowed {
		if !slices.Contains(granted, s) {
			return nil, oidcerr.ErrInvalidScope.WithDescription("scope %q exceeds the original grant", s)
		}
	}
	return narrowed, nil
}
