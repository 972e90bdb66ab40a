package grant

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
)

func plantPreAuthCode(t *testing.T, env *testEnv, rec *domain.PreAuthorizedCode) {
	t.Helper()
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = env.now.Add(10 * time.Minute)
	}
	rec.CreatedAt = env.now
	require.NoError(t, env.store.PreAuthorizedCodes().Create(context.Background(), rec))
}

func preAuthForm(code string) url.Values {
	return url.Values{"pre-authorized_code": {code}}
}

func TestPreAuthCodeGrant(t *testing.T) {
	t.Parallel()

	details := []byte(`[{"type":"openid_credential","credential_configuration_id":"EmployeeBadge"}]`)

	t.Run("never serves the authorization endpoint", func(t *testing.T) {
		env := newTestEnv(t)
		g := NewPreAuthCodeGrant(env.deps)

		require.False(t, g.CanRespondToAuthorizationRequest(&AuthorizationRequest{ResponseTypes: []string{"code"}}))
		require.True(t, g.CanRespondToAccessTokenRequest(TypePreAuthorizedCode))

		_, err := g.CompleteAuthorizationRequest(context.Background(), &AuthorizationRequest{}, env.session())
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("exchange echoes the authorization details", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewPreAuthCodeGrant(env.deps)
		ctx := context.Background()

		plantPreAuthCode(t, env, &domain.PreAuthorizedCode{
			ID:                   "pac1",
			ClientID:             "web-app",
			UserID:               "u1",
			AuthorizationDetails: details,
		})

		resp, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypePreAuthorizedCode,
			Client:    env.client(t, "web-app"),
			Form:      preAuthForm("pac1"),
		})
		require.NoError(t, err)

		require.Equal(t, "Bearer", resp.TokenType)
		require.JSONEq(t, string(details), string(resp.AuthorizationDetails))

		// The token's power comes from the details, not from scopes.
		require.Empty(t, resp.Scope)
		claims := env.verify(t, resp.AccessToken)
		require.Empty(t, claims.Scopes)
		require.Equal(t, "u1", claims.Subject)

		// Spent on first use.
		_, err = g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypePreAuthorizedCode,
			Client:    env.client(t, "web-app"),
			Form:      preAuthForm("pac1"),
		})
		require.ErrorIs(t, err, oidcerr.ErrInvalidGrant)
	})

	t.Run("tx_code is demanded when provisioned", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewPreAuthCodeGrant(env.deps)
		ctx := context.Background()

		plantPreAuthCode(t, env, &domain.PreAuthorizedCode{
			ID:       "pac2",
			ClientID: "web-app",
			UserID:   "u1",
			TxCode:   "492817",
		})

		// Absent and wrong tx_code both fail.
		_, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypePreAuthorizedCode,
			Client:    env.client(t, "web-app"),
			Form:      preAuthForm("pac2"),
		})
		require.ErrorIs(t, err, oidcerr.ErrInvalidGrant)

		form := preAuthForm("pac2")
		form.Set("tx_code", "000000")
		_, err = g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypePreAuthorizedCode,
			Client:    env.client(t, "web-app"),
			Form:      form,
		})
		require.ErrorIs(t, err, oidcerr.ErrInvalidGrant)

		form.Set("tx_code", "492817")
		resp, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypePreAuthorizedCode,
			Client:    env.client(t, "web-app"),
			Form:      form,
		})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
	})

	t.Run("rejects the usual suspects", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewPreAuthCodeGrant(env.deps)
		ctx := context.Background()

		plantPreAuthCode(t, env, &domain.PreAuthorizedCode{
			ID:        "pac-expired",
			ClientID:  "web-app",
			UserID:    "u1",
			ExpiresAt: env.now.Add(-time.Minute),
		})
		plantPreAuthCode(t, env, &domain.PreAuthorizedCode{
			ID:       "pac-other",
			ClientID: "other-app",
			UserID:   "u1",
		})

		exchange := func(form url.Values) error {
			_, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
				GrantType: TypePreAuthorizedCode,
				Client:    env.client(t, "web-app"),
				Form:      form,
			})
			return err
		}

		require.ErrorIs(t, exchange(preAuthForm("pac-unknown")), oidcerr.ErrInvalidGrant)
		require.ErrorIs(t, exchange(preAuthForm("pac-expired")), oidcerr.ErrInvalidGrant)
		require.ErrorIs(t, exchange(preAuthForm("pac-other")), oidcerr.ErrInvalidGrant)
		require.ErrorIs(t, exchange(url.Values{}), oidcerr.ErrInvalidRequest)
	})

	t.Run("malformed request details are refused", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewPreAuthCodeGrant(env.deps)
		ctx := context.Background()

		plantPreAuthCode(t, env, &domain.PreAuthorizedCode{
			ID:                   "pac-details",
			ClientID:             "web-app",
			UserID:               "u1",
			AuthorizationDetails: details,
		})

		exchange := func(requestDetails string) error {
			form := preAuthForm("pac-details")
			form.Set("authorization_details", requestDetails)
			_, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
				GrantType: TypePreAuthorizedCode,
				Client:    env.client(t, "web-app"),
				Form:      form,
			})
			return err
		}

		require.ErrorIs(t, exchange(`{not json`), oidcerr.ErrInvalidRequest)
		require.ErrorIs(t, exchange(`{"type":"openid_credential"}`), oidcerr.ErrInvalidRequest)

		// The code survives the bad requests and a well-formed array spends it.
		revoked, err := env.store.PreAuthorizedCodes().IsRevoked(ctx, "pac-details")
		require.NoError(t, err)
		require.False(t, revoked)

		require.NoError(t, exchange(string(details)))
	})

	t.Run("malformed stored details are a server fault", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		g := NewPreAuthCodeGrant(env.deps)
		ctx := context.Background()

		plantPreAuthCode(t, env, &domain.PreAuthorizedCode{
			ID:                   "pac-broken",
			ClientID:             "web-app",
			UserID:               "u1",
			AuthorizationDetails: []byte(`{"not":"an array"}`),
		})

		_, err := g.RespondToAccessTokenRequest(ctx, &TokenRequest{
			GrantType: TypePreAuthorizedCode,
			Client:    env.client(t, "web-app"),
			Form:      preAuthForm("pac-broken"),
		})
		require.ErrorIs(t, err, oidcerr.ErrServerError)

		// The failed exchange does not consume the code; fixing the row
		// makes it usable again.
		revoked, err := env.store.PreAuthorizedCodes().IsRevoked(ctx, "pac-broken")
		require.NoError(t, err)
		require.False(t, revoked)
	})
}
