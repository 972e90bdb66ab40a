package grant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/token"
	"github.com/tabsync/oidcd/pkg/idx"
	"github.com/tabsync/oidcd/pkg/slogx"
)

// maxCodeIssueAttempts bounds the retry loop for code identifier
// collisions. Hitting the bound means the ID source is broken, not that we
// are unlucky.
const maxCodeIssueAttempts = 10

// AuthCodeGrant implements the authorization code flow with PKCE
// (RFC 6749 §4.1, RFC 7636). Codes are sealed payloads; the database row
// exists for replay detection and cascade revocation.
type AuthCodeGrant struct {
	deps *Deps
}

// NewAuthCodeGrant wires the grant to its collaborators.
func NewAuthCodeGrant(deps *Deps) *AuthCodeGrant {
	return &AuthCodeGrant{deps: deps}
}

func (g *AuthCodeGrant) Name() string { return TypeAuthorizationCode }

func (g *AuthCodeGrant) CanRespondToAuthorizationRequest(ar *AuthorizationRequest) bool {
	return len(ar.ResponseTypes) == 1 && ar.ResponseTypes[0] == "code"
}

func (g *AuthCodeGrant) CanRespondToAccessTokenRequest(grantType string) bool {
	return grantType == TypeAuthorizationCode
}

// CompleteAuthorizationRequest issues a sealed authorization code and
// builds the redirect back to the client.
func (g *AuthCodeGrant) CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest, sess *domain.Session) (*url.URL, error) {
	now := g.deps.now()
	expiresAt := now.Add(g.deps.CodeTTL)

	rec := &domain.AuthorizationCode{
		ClientID:  ar.Client.ID,
		UserID:    sess.UserID,
		Scopes:    ar.Scopes,
		SessionID: sess.ID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	var issued bool
	for attempt := 0; attempt < maxCodeIssueAttempts; attempt++ {
		rec.ID = idx.New().String()
		err := g.deps.Store.AuthorizationCodes().Create(ctx, rec)
		if err == nil {
			issued = true
			break
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, fmt.Errorf("grant: record authorization code: %w", err)
		}
		slogx.FromContext(ctx).Warn("authorization code id collision, retrying",
			"attempt", attempt+1)
	}
	if !issued {
		return nil, fmt.Errorf("grant: could not issue a unique authorization code after %d attempts", maxCodeIssueAttempts)
	}

	payload := &token.CodePayload{
		ID:                  rec.ID,
		ClientID:            ar.Client.ID,
		UserID:              sess.UserID,
		RedirectURI:         ar.RedirectURI,
		Scopes:              ar.Scopes,
		CodeChallenge:       ar.CodeChallenge,
		CodeChallengeMethod: ar.CodeChallengeMethod,
		Nonce:               ar.Nonce,
		ACR:                 g.deps.IDTokens.resolveACR(ar.AcrValues, sess),
		AMR:                 sess.AMR,
		AuthTime:            sess.AuthTime.Unix(),
		SessionID:           sess.ID,
		Claims:              ar.Claims,
		AddClaimsToIDToken:  ar.AddClaimsToIDToken,
		ExpiresAt:           expiresAt.Unix(),
	}
	code, err := g.deps.Sealer.SealCode(payload)
	if err != nil {
		return nil, err
	}

	redirect, err := url.Parse(ar.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("grant: parse redirect_uri: %w", err)
	}
	query := redirect.Query()
	query.Set("code", code)
	if ar.State != "" {
		query.Set("state", ar.State)
	}
	redirect.RawQuery = query.Encode()
	return redirect, nil
}

// RespondToAccessTokenRequest exchanges an authorization code for tokens.
// A replayed code revokes everything the first exchange produced before
// failing the request.
func (g *AuthCodeGrant) RespondToAccessTokenRequest(ctx context.Context, tr *TokenRequest) (*TokenResponse, error) {
	if !tr.Client.AllowsGrantType(TypeAuthorizationCode) {
		return nil, oidcerr.ErrUnauthorizedClient.WithDescription("client may not use the authorization_code grant")
	}

	sealed := tr.Param("code")
	if sealed == "" {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("code is required")
	}

	payload, err := g.deps.Sealer.OpenCode(sealed)
	if err != nil {
		return nil, oidcerr.ErrInvalidGrant.WithDescription("authorization code is invalid")
	}
	if payload.ClientID != tr.Client.ID {
		return nil, oidcerr.ErrInvalidGrant.WithDescription("authorization code was issued to another client")
	}

	now := g.deps.now()
	if payload.Expired(now) {
		return nil, oidcerr.ErrInvalidGrant.WithDescription("authorization code has expired")
	}

	if err := g.checkRedirectURI(payload, tr.Param("redirect_uri")); err != nil {
		return nil, err
	}
	if err := g.checkCodeVerifier(payload, tr.Param("code_verifier")); err != nil {
		return nil, err
	}

	var resp *TokenResponse
	err = g.deps.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.AuthorizationCodes().FindByID(ctx, payload.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return oidcerr.ErrInvalidGrant.WithDescription("authorization code is invalid")
			}
			return err
		}

		if rec.Revoked() {
			return g.revokeDescendants(ctx, tx, payload.ID, now)
		}
		if rec.Expired(now) {
			return oidcerr.ErrInvalidGrant.WithDescription("authorization code has expired")
		}

		// Consume before minting so a concurrent exchange of the same code
		// lands on the replay path.
		if err := tx.AuthorizationCodes().Revoke(ctx, payload.ID, now); err != nil {
			return err
		}

		resp, err = g.mint(ctx, tx, tr.Client, payload, sealed, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// revokeDescendants cascades a replayed code: every access and refresh
// token descended from it dies with the replay.
func (g *AuthCodeGrant) revokeDescendants(ctx context.Context, tx store.Tx, authCodeID string, now time.Time) error {
	accessRevoked, err := tx.AccessTokens().RevokeByAuthCodeID(ctx, authCodeID, now)
	if err != nil {
		return err
	}
	refreshRevoked, err := tx.RefreshTokens().RevokeByAuthCodeID(ctx, authCodeID, now)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Warn("authorization code replay detected",
		"auth_code_id", authCodeID,
		"access_tokens_revoked", accessRevoked,
		"refresh_tokens_revoked", refreshRevoked)
	return oidcerr.ErrInvalidGrant.WithDescription("authorization code has already been used")
}

// checkRedirectURI enforces the all-or-nothing rule: a redirect_uri bound
// at authorization time must be repeated exactly, and one that was not
// bound must not appear.
func (g *AuthCodeGrant) checkRedirectURI(payload *token.CodePayload, uri string) error {
	if payload.RedirectURI == "" {
		if uri != "" {
			return oidcerr.ErrInvalidRequest.WithDescription("redirect_uri was not part of the authorization request")
		}
		return nil
	}
	if uri == "" {
		return oidcerr.ErrInvalidRequest.WithDescription("redirect_uri is required")
	}
	if uri != payload.RedirectURI {
		return oidcerr.ErrInvalidRequest.WithDescription("redirect_uri does not match the authorization request")
	}
	return nil
}

// checkCodeVerifier enforces PKCE, including downgrade protection: a
// challenge bound at authorization time demands a verifier, and a verifier
// without a bound challenge is rejected rather than ignored.
func (g *AuthCodeGrant) checkCodeVerifier(payload *token.CodePayload, verifier string) error {
	if payload.CodeChallenge == "" {
		if verifier != "" {
			return oidcerr.ErrInvalidGrant.WithDescription("code_verifier provided but no code_challenge was bound")
		}
		return nil
	}
	if verifier == "" {
		return oidcerr.ErrInvalidGrant.WithDescription("code_verifier is required")
	}
	if !codeVerifierRe.MatchString(verifier) {
		return oidcerr.ErrInvalidRequest.WithDescription("code_verifier is malformed")
	}
	if !g.deps.Challenges.Verify(payload.CodeChallengeMethod, payload.CodeChallenge, verifier) {
		return oidcerr.ErrInvalidGrant.WithDescription("code_verifier does not match the code_challenge")
	}
	return nil
}

// codeVerifierRe is the RFC 7636 §4.1 unreserved charset and length bound.
var codeVerifierRe = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

// mint produces the token response inside the exchange transaction. Scopes
// are finalized against the client's current registration first; a scope
// revoked between authorization and exchange does not survive into tokens.
func (g *AuthCodeGrant) mint(ctx context.Context, tx store.Tx, client *domain.Client, payload *token.CodePayload, code string, now time.Time) (*TokenResponse, error) {
	scopes := finalizeScopes(client, payload.Scopes)

	access, accessRec, err := g.deps.issueAccessToken(ctx, tx, client, payload.UserID, payload.SessionID, payload.ID, scopes, now)
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(g.deps.AccessTokenTTL.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}

	if slices.Contains(scopes, domain.ScopeOfflineAccess) {
		refresh, err := g.deps.issueRefreshToken(ctx, tx, client,
			payload.UserID, payload.SessionID, payload.ID, accessRec.ID,
			scopes, payload.ACR, payload.AMR, payload.AuthTime, now)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
	}

	if slices.Contains(scopes, domain.ScopeOpenID) {
		idToken, err := g.deps.IDTokens.Issue(ctx, IDTokenParams{
			ClientID: client.ID,
			UserID:   payload.UserID,
			Scopes:   scopes,
			Nonce:    payload.Nonce,
			ACR:      payload.ACR,
			Session: &domain.Session{
				ID:       payload.SessionID,
				UserID:   payload.UserID,
				AuthTime: time.Unix(payload.AuthTime, 0),
				AMR:      payload.AMR,
			},
			AccessToken: access,
			Claims:      payload.Claims,
			EmbedClaims: payload.AddClaimsToIDToken,
			Now:         now,
		})
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	return resp, nil
}
