package engine

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/rules"
	"github.com/tabsync/oidcd/internal/oidc/store/drivers/sqlite"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

const (
	engineTestIssuer   = "https://id.test.example.com"
	engineTestRedirect = "https://spa.example.com/cb"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	for _, s := range []string{domain.ScopeOpenID, domain.ScopeProfile, domain.ScopeEmail} {
		require.NoError(t, st.Scopes().Create(ctx, &domain.Scope{Identifier: s}))
	}
	require.NoError(t, st.Clients().Create(ctx, &domain.Client{
		ID:           "spa",
		Name:         "Single Page App",
		RedirectURIs: []string{engineTestRedirect},
		Enabled:      true,
	}))

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    engineTestIssuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	eng, err := New(Config{
		Issuer:                 engineTestIssuer,
		Verifier:               keys.Verifier,
		Store:                  st,
		DefaultScope:           "openid",
		SupportedResponseTypes: []string{"code", "id_token", "id_token token"},
	})
	require.NoError(t, err)
	return eng
}

func request(t *testing.T, path string, params url.Values) *rules.Request {
	t.Helper()
	req, err := rules.NewRequest(httptest.NewRequest("GET", path+"?"+params.Encode(), nil))
	require.NoError(t, err)
	return req
}

func TestValidateAuthorizationRequest(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	challenge := base64.RawURLEncoding.EncodeToString(func() []byte {
		sum := sha256.Sum256([]byte("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
		return sum[:]
	}())

	t.Run("a complete code request comes out fully assembled", func(t *testing.T) {
		req := request(t, "/authorize", url.Values{
			"client_id":             {"spa"},
			"redirect_uri":          {engineTestRedirect},
			"response_type":         {"code"},
			"scope":                 {"openid email"},
			"state":                 {"abc"},
			"code_challenge":        {challenge},
			"code_challenge_method": {"S256"},
		})

		ar, bag, err := eng.ValidateAuthorizationRequest(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, bag)

		require.Equal(t, "spa", ar.Client.ID)
		require.Equal(t, []string{"code"}, ar.ResponseTypes)
		require.Equal(t, engineTestRedirect, ar.RedirectURI)
		require.Equal(t, []string{"openid", "email"}, ar.Scopes)
		require.Equal(t, "abc", ar.State)
		require.Equal(t, challenge, ar.CodeChallenge)
		require.Equal(t, "S256", ar.CodeChallengeMethod)
		require.False(t, ar.AddClaimsToIDToken)
	})

	t.Run("a failing rule still hands back the bag", func(t *testing.T) {
		req := request(t, "/authorize", url.Values{
			"client_id":             {"spa"},
			"redirect_uri":          {engineTestRedirect},
			"response_type":         {"code"},
			"scope":                 {"openid banking"},
			"code_challenge":        {challenge},
			"code_challenge_method": {"S256"},
		})

		ar, bag, err := eng.ValidateAuthorizationRequest(ctx, req)
		require.ErrorIs(t, err, oidcerr.ErrInvalidScope)
		require.Nil(t, ar)

		// The redirect_uri was validated before scopes, so the caller can
		// deliver the error to the client instead of rendering it.
		require.NotNil(t, bag)
		require.Equal(t, engineTestRedirect, bag.String(rules.KeyRedirectURI))
	})

	t.Run("empty scope falls back to the default", func(t *testing.T) {
		req := request(t, "/authorize", url.Values{
			"client_id":             {"spa"},
			"redirect_uri":          {engineTestRedirect},
			"response_type":         {"code"},
			"code_challenge":        {challenge},
			"code_challenge_method": {"S256"},
		})

		ar, _, err := eng.ValidateAuthorizationRequest(ctx, req)
		require.NoError(t, err)
		require.Equal(t, []string{"openid"}, ar.Scopes)
	})
}

func TestValidateLogoutRequest(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	t.Run("a bare logout passes with nothing resolved", func(t *testing.T) {
		bag, err := eng.ValidateLogoutRequest(ctx, request(t, "/logout", url.Values{}))
		require.NoError(t, err)
		require.Empty(t, bag.String(rules.KeyPostLogoutRedirectURI))
	})

	t.Run("a redirect target without a hint is refused", func(t *testing.T) {
		req := request(t, "/logout", url.Values{
			"post_logout_redirect_uri": {engineTestRedirect},
		})

		_, err := eng.ValidateLogoutRequest(ctx, req)
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})
}
