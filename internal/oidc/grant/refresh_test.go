package grant

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/token"
)

// issueRefresh plants a refresh token the way the code grant would have,
// row and sealed payload both.
func issueRefresh(t *testing.T, env *testEnv, id string, scopes []string) string {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, env.store.RefreshTokens().Create(ctx, &domain.RefreshToken{
		ID:         id,
		ClientID:   "web-app",
		UserID:     "u1",
		AuthCodeID: "ac-" + id,
		Scopes:     scopes,
		ExpiresAt:  env.now.Add(env.deps.RefreshTokenTTL),
		CreatedAt:  env.now,
	}))

	sealed, err := env.deps.Sealer.SealRefresh(&token.RefreshPayload{
		ID:         id,
		ClientID:   "web-app",
		UserID:     "u1",
		Scopes:     scopes,
		AuthCodeID: "ac-" + id,
		SessionID:  "sess1",
		ACR:        testCookieACR,
		AMR:        []string{"pwd"},
		AuthTime:   env.now.Add(-time.Minute).Unix(),
		ExpiresAt:  env.now.Add(env.deps.RefreshTokenTTL).Unix(),
	})
	require.NoError(t, err)
	return sealed
}

func refreshForm(sealed string) url.Values {
	return url.Values{"refresh_token": {sealed}}
}

func TestRefreshTokenGrant(t *testing.T) {
	t.Parallel()

	t.Run("rotation revokes the old token and issues a family member", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewRefreshTokenGrant(env.deps)
		ctx := context.Background()

		sealed := issueRefresh(t, env, "rt1", []string{"openid", "email", "offline_access"})

		resp, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypeRefreshToken,
			Client:    env.client(t, "web-app"),
			Form:      refreshForm(sealed),
		})
		require.NoError(t, err)

		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.NotEqual(t, sealed, resp.RefreshToken)
		require.Equal(t, "openid email offline_access", resp.Scope)

		// The replaced token is dead.
		revoked, err := env.store.RefreshTokens().IsRevoked(ctx, "rt1")
		require.NoError(t, err)
		require.True(t, revoked)

		// The ID token carries the authorization-time acr, not a fresh one.
		idClaims := env.verify(t, resp.IDToken)
		require.Equal(t, testCookieACR, idClaims.ACR)

		// The replacement keeps the code lineage so a later code replay
		// still reaches it.
		rotated, err := env.deps.Sealer.OpenRefresh(resp.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, "ac-rt1", rotated.AuthCodeID)
	})

	t.Run("presenting a rotated-out token fails", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewRefreshTokenGrant(env.deps)
		ctx := context.Background()

		sealed := issueRefresh(t, env, "rt2", []string{"openid", "offline_access"})
		tr := &TokenRequest{
			GrantType: TypeRefreshToken,
			Client:    env.client(t, "web-app"),
			Form:      refreshForm(sealed),
		}

		_, err := g.RespondToAccessTokenRequest(ctx, tr)
		require.NoError(t, err)

		_, err = g.RespondToAccessTokenRequest(ctx, tr)
		require.ErrorIs(t, err, oidcerr.ErrInvalidGrant)
	})

	t.Run("scope may shrink but never grow", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewRefreshTokenGrant(env.deps)
		ctx := context.Background()

		sealed := issueRefresh(t, env, "rt3", []string{"openid", "email", "offline_access"})
		form := refreshForm(sealed)
		form.Set("scope", "openid offline_access")

		resp, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypeRefreshToken,
			Client:    env.client(t, "web-app"),
			Form:      form,
		})
		require.NoError(t, err)
		require.Equal(t, "openid offline_access", resp.Scope)

		// The rotated token keeps the full original grant.
		rotated, err := env.deps.Sealer.OpenRefresh(resp.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, []string{"openid", "email", "offline_access"}, rotated.Scopes)

		grow := refreshForm(issueRefresh(t, env, "rt4", []string{"openid"}))
		grow.Set("scope", "openid profile")
		_, err = g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypeRefreshToken,
			Client:    env.client(t, "web-app"),
			Form:      grow,
		})
		require.ErrorIs(t, err, oidcerr.ErrInvalidScope)
	})

	t.Run("fails closed on anything doubtful", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewRefreshTokenGrant(env.deps)
		ctx := context.Background()

		exchange := func(form url.Values, clientID string) error {
			_, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
				GrantType: TypeRefreshToken,
				Client:    env.client(t, clientID),
				Form:      form,
			})
			return err
		}

		// Garbage token.
		require.ErrorIs(t, exchange(refreshForm("garbage"), "web-app"), oidcerr.ErrInvalidGrant)

		// Sealed payload without a backing row.
		orphan, err := env.deps.Sealer.SealRefresh(&token.RefreshPayload{
			ID:        "never-issued",
			ClientID:  "web-app",
			UserID:    "u1",
			ExpiresAt: env.now.Add(time.Hour).Unix(),
		})
		require.NoError(t, err)
		require.ErrorIs(t, exchange(refreshForm(orphan), "web-app"), oidcerr.ErrInvalidGrant)

		// Another client's token.
		sealed := issueRefresh(t, env, "rt5", []string{"openid", "offline_access"})
		require.ErrorIs(t, exchange(refreshForm(sealed), "other-app"), oidcerr.ErrInvalidGrant)

		// Expired payload.
		expired, err := env.deps.Sealer.SealRefresh(&token.RefreshPayload{
			ID:        "rt-expired",
			ClientID:  "web-app",
			UserID:    "u1",
			ExpiresAt: env.now.Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)
		require.ErrorIs(t, exchange(refreshForm(expired), "web-app"), oidcerr.ErrInvalidGrant)

		// Missing parameter is a request error, not a grant error.
		require.ErrorIs(t, exchange(url.Values{}, "web-app"), oidcerr.ErrInvalidRequest)
	})

	t.Run("code replay after rotation kills the whole family", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		codeGrant := NewAuthCodeGrant(env.deps)
		refreshGrant := NewRefreshTokenGrant(env.deps)
		ctx := context.Background()

		code := authorizeCode(t, env, codeAuthRequest(t, env))
		first, err := codeGrant.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypeAuthorizationCode,
			Client:    env.client(t, "web-app"),
			Form:      exchangeForm(code),
		})
		require.NoError(t, err)

		rotated, err := refreshGrant.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypeRefreshToken,
			Client:    env.client(t, "web-app"),
			Form:      refreshForm(first.RefreshToken),
		})
		require.NoError(t, err)

		// Replay the original code.
		_, err = codeGrant.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypeAuthorizationCode,
			Client:    env.client(t, "web-app"),
			Form:      exchangeForm(code),
		})
		require.ErrorIs(t, err, oidcerr.ErrInvalidGrant)

		// The rotated refresh token descends from the replayed code and is
		// gone with it.
		payload, err := env.deps.Sealer.OpenRefresh(rotated.RefreshToken)
		require.NoError(t, err)
		revoked, err := env.store.RefreshTokens().IsRevoked(ctx, payload.ID)
		require.NoError(t, err)
		require.True(t, revoked)
	})
}
