package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/token"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

// finalizeScopes intersects granted scopes with the client's current
// registration. An empty registration places no restriction.
func finalizeScopes(client *domain.Client, scopes []string) []string {
	if len(client.Scopes) == 0 {
		return scopes
	}
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if client.HasScope(s) {
			out = append(out, s)
		}
	}
	return out
}

// issueAccessToken signs a JWT access token and records its jti so it can
// be revoked later. st may be a transaction-scoped store.
func (d *Deps) issueAccessToken(
	ctx context.Context,
	st store.Store,
	client *domain.Client,
	userID, sessionID, authCodeID string,
	scopes []string,
	now time.Time,
) (string, *domain.AccessToken, error) {
	claims := jwtx.NewAccessClaims(userID, sessionID, scopes, d.AccessTokenTTL, d.Issuer, []string{client.ID}, now)

	signer := d.Keys.GetSigner()
	if signer == nil {
		return "", nil, fmt.Errorf("grant: no signing key available")
	}
	signed, err := signer.Sign(claims)
	if err != nil {
		return "", nil, fmt.Errorf("grant: sign access token: %w", err)
	}

	rec := &domain.AccessToken{
		ID:         claims.ID,
		ClientID:   client.ID,
		UserID:     userID,
		AuthCodeID: authCodeID,
		Scopes:     scopes,
		ExpiresAt:  now.Add(d.AccessTokenTTL),
		CreatedAt:  now,
	}
	if err := st.AccessTokens().Create(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("grant: record access token: %w", err)
	}
	return signed, rec, nil
}

// issueRefreshToken seals a refresh token and records its row, linked to
// the access token it was issued beside and the code lineage it descends
// from.
func (d *Deps) issueRefreshToken(
	ctx context.Context,
	st store.Store,
	client *domain.Client,
	userID, sessionID, authCodeID, accessTokenID string,
	scopes []string,
	acr string,
	amr []string,
	authTime int64,
	now time.Time,
) (string, error) {
	id := jwtx.NewJTI()
	payload := &token.RefreshPayload{
		ID:         id,
		ClientID:   client.ID,
		UserID:     userID,
		Scopes:     scopes,
		AuthCodeID: authCodeID,
		SessionID:  sessionID,
		ACR:        acr,
		AMR:        amr,
		AuthTime:   authTime,
		ExpiresAt:  now.Add(d.RefreshTokenTTL).Unix(),
	}

	sealed, err := d.Sealer.SealRefresh(payload)
	if err != nil {
		return "", fmt.Errorf("grant: seal refresh token: %w", err)
	}

	rec := &domain.RefreshToken{
		ID:            id,
		ClientID:      client.ID,
		UserID:        userID,
		AuthCodeID:    authCodeID,
		AccessTokenID: accessTokenID,
		Scopes:        scopes,
		ExpiresAt:     now.Add(d.RefreshTokenTTL),
		CreatedAt:     now,
	}
	if err := st.RefreshTokens().Create(ctx, rec); err != nil {
		return "", fmt.Errorf("grant: record refresh token: %w", err)
	}
	return sealed, nil
}
