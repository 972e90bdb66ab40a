package rules

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/store/drivers/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	for _, s := range []domain.Scope{
		{Identifier: domain.ScopeOpenID, Description: "OpenID Connect authentication"},
		{Identifier: domain.ScopeProfile, Description: "Basic profile attributes"},
		{Identifier: domain.ScopeEmail, Description: "Email address"},
		{Identifier: domain.ScopeOfflineAccess, Description: "Refresh token issuance"},
	} {
		require.NoError(t, st.Scopes().Create(ctx, &s))
	}
	return st
}

func authorizeRequest(t *testing.T, params url.Values) *Request {
	t.Helper()
	req, err := NewRequest(httptest.NewRequest("GET", "/authorize?"+params.Encode(), nil))
	require.NoError(t, err)
	return req
}

func bagWithClient(client *domain.Client) *ResultBag {
	bag := NewResultBag()
	bag.Add(NewResult(KeyClient, client))
	return bag
}

func TestClientIDRule(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Clients().Create(ctx, &domain.Client{
		ID:           "web-app",
		Name:         "Web App",
		RedirectURIs: []string{"https://app.example.com/cb"},
		Enabled:      true,
	}))
	require.NoError(t, st.Clients().Create(ctx, &domain.Client{
		ID:      "retired-app",
		Name:    "Retired App",
		Enabled: false,
	}))

	rule := &ClientIDRule{Clients: st.Clients()}

	t.Run("resolves an enabled client", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{"client_id": {"web-app"}}), NewResultBag())
		require.NoError(t, err)

		client, ok := res.Value().(*domain.Client)
		require.True(t, ok)
		require.Equal(t, "web-app", client.ID)
	})

	t.Run("missing client_id", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("unknown and disabled clients look identical", func(t *testing.T) {
		_, errUnknown := rule.Check(ctx, authorizeRequest(t, url.Values{"client_id": {"nope"}}), NewResultBag())
		_, errDisabled := rule.Check(ctx, authorizeRequest(t, url.Values{"client_id": {"retired-app"}}), NewResultBag())

		require.ErrorIs(t, errUnknown, oidcerr.ErrInvalidClient)
		require.ErrorIs(t, errDisabled, oidcerr.ErrInvalidClient)
	})
}

func TestRedirectURIRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := &RedirectURIRule{}

	single := &domain.Client{
		ID:           "single",
		RedirectURIs: []string{"https://app.example.com/cb"},
	}
	multi := &domain.Client{
		ID:           "multi",
		RedirectURIs: []string{"https://a.example.com/cb", "https://b.example.com/cb"},
	}

	t.Run("absent parameter falls back to the only registered URI", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bagWithClient(single))
		require.NoError(t, err)
		require.Equal(t, "https://app.example.com/cb", res.Value())
	})

	t.Run("absent parameter with several registered URIs fails", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bagWithClient(multi))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("exact match required", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"redirect_uri": {"https://app.example.com/cb/extra"},
		}), bagWithClient(single))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("fragments are rejected", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"redirect_uri": {"https://app.example.com/cb#frag"},
		}), bagWithClient(single))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("missing client dependency is a dependency error", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())

		var dep *DependencyError
		require.ErrorAs(t, err, &dep)
	})
}

func TestScopeRule(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	ctx := context.Background()
	rule := &ScopeRule{Scopes: st.Scopes()}
	client := &domain.Client{ID: "c"}

	t.Run("parses and validates", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"scope": {"openid profile"},
		}), bagWithClient(client))
		require.NoError(t, err)
		require.Equal(t, []string{"openid", "profile"}, res.Value())
	})

	t.Run("unknown scope is rejected", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"scope": {"openid banking"},
		}), bagWithClient(client))
		require.ErrorIs(t, err, oidcerr.ErrInvalidScope)
	})

	t.Run("default scope applies when the parameter is absent", func(t *testing.T) {
		req := authorizeRequest(t, url.Values{})
		req.SetData(DataDefaultScope, "openid")

		res, err := rule.Check(ctx, req, bagWithClient(client))
		require.NoError(t, err)
		require.Equal(t, []string{"openid"}, res.Value())
	})

	t.Run("custom delimiter", func(t *testing.T) {
		req := authorizeRequest(t, url.Values{"scope": {"openid,email"}})
		req.SetData(DataScopeDelimiter, ",")

		res, err := rule.Check(ctx, req, bagWithClient(client))
		require.NoError(t, err)
		require.Equal(t, []string{"openid", "email"}, res.Value())
	})

	t.Run("empty bag is a dependency error, not a protocol error", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{"scope": {"openid"}}), NewResultBag())

		var dep *DependencyError
		require.ErrorAs(t, err, &dep)

		_, isProtocol := oidcerr.As(err)
		require.False(t, isProtocol)
	})
}

func TestOfflineAccessRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := &OfflineAccessRule{}

	registered := &domain.Client{ID: "c", Scopes: []string{"openid", "offline_access"}}
	unregistered := &domain.Client{ID: "c", Scopes: []string{"openid"}}

	withScopes := func(client *domain.Client, scopes []string) *ResultBag {
		bag := bagWithClient(client)
		bag.Add(NewResult(KeyScopes, scopes))
		return bag
	}

	t.Run("registered client may request offline_access", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}),
			withScopes(registered, []string{"openid", "offline_access"}))
		require.NoError(t, err)
		require.Equal(t, true, res.Value())
	})

	t.Run("unregistered client requesting offline_access is rejected", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}),
			withScopes(unregistered, []string{"openid", "offline_access"}))
		require.ErrorIs(t, err, oidcerr.ErrInvalidScope)
	})

	t.Run("not requesting it is fine either way", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}),
			withScopes(unregistered, []string{"openid"}))
		require.NoError(t, err)
		require.Equal(t, false, res.Value())
	})
}

func TestPKCERules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	public := &domain.Client{ID: "p"}
	confidential := &domain.Client{ID: "c", SecretHash: "$argon2id$..."}

	challenge := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk" // 43 chars

	t.Run("public client must send a challenge", func(t *testing.T) {
		rule := &CodeChallengeRule{}
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bagWithClient(public))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("confidential client may omit the challenge", func(t *testing.T) {
		rule := &CodeChallengeRule{}
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bagWithClient(confidential))
		require.NoError(t, err)
		require.Equal(t, "", res.Value())
	})

	t.Run("malformed challenge is rejected", func(t *testing.T) {
		rule := &CodeChallengeRule{}
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"code_challenge": {"too-short"},
		}), bagWithClient(public))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("method defaults to plain", func(t *testing.T) {
		bag := NewResultBag()
		bag.Add(NewResult(KeyCodeChallenge, challenge))

		rule := &CodeChallengeMethodRule{}
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bag)
		require.NoError(t, err)
		require.Equal(t, "plain", res.Value())
	})

	t.Run("method is normalized case-insensitively", func(t *testing.T) {
		bag := NewResultBag()
		bag.Add(NewResult(KeyCodeChallenge, challenge))

		rule := &CodeChallengeMethodRule{}
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"code_challenge_method": {"s256"},
		}), bag)
		require.NoError(t, err)
		require.Equal(t, "S256", res.Value())
	})

	t.Run("unknown method is rejected", func(t *testing.T) {
		bag := NewResultBag()
		bag.Add(NewResult(KeyCodeChallenge, challenge))

		rule := &CodeChallengeMethodRule{}
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"code_challenge_method": {"S512"},
		}), bag)
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("configured method set is authoritative", func(t *testing.T) {
		bag := NewResultBag()
		bag.Add(NewResult(KeyCodeChallenge, challenge))

		rule := &CodeChallengeMethodRule{Methods: []string{"plain", "S256", "S512"}}
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"code_challenge_method": {"s512"},
		}), bag)
		require.NoError(t, err)
		require.Equal(t, "S512", res.Value())

		narrow := &CodeChallengeMethodRule{Methods: []string{"S256"}}
		_, err = narrow.Check(ctx, authorizeRequest(t, url.Values{
			"code_challenge_method": {"plain"},
		}), bag)
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("empty bag is a dependency error", func(t *testing.T) {
		for _, rule := range []Rule{&CodeChallengeRule{}, &CodeChallengeMethodRule{}} {
			_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())

			var dep *DependencyError
			require.ErrorAs(t, err, &dep, "rule %s", rule.Key())
		}
	})
}

func TestResponseTypeRules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := NewResponseTypeRule("code", "id_token", "id_token token")

	t.Run("single code", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"response_type": {"code"},
		}), NewResultBag())
		require.NoError(t, err)
		require.Equal(t, []string{"code"}, res.Value())
	})

	t.Run("order within the parameter does not matter", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"response_type": {"token id_token"},
		}), NewResultBag())
		require.NoError(t, err)
		require.Equal(t, []string{"token", "id_token"}, res.Value())
	})

	t.Run("unsupported combination", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"response_type": {"code token"},
		}), NewResultBag())
		require.ErrorIs(t, err, oidcerr.ErrUnsupportedResponseType)
	})

	t.Run("missing response_type", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})
}

func TestRequiredNonceRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := &RequiredNonceRule{}

	withTypes := func(types ...string) *ResultBag {
		bag := NewResultBag()
		bag.Add(NewResult(KeyResponseTypes, types))
		return bag
	}

	t.Run("nonce required when id_token is delivered from authorize", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), withTypes("id_token"))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("code flow does not require a nonce", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), withTypes("code"))
		require.NoError(t, err)
		require.Equal(t, "", res.Value())
	})

	t.Run("empty bag is a dependency error", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())

		var dep *DependencyError
		require.ErrorAs(t, err, &dep)
	})
}

func TestAddClaimsToIDTokenRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := &AddClaimsToIDTokenRule{}

	cases := []struct {
		name  string
		types []string
		want  bool
	}{
		{"id_token alone", []string{"id_token"}, true},
		{"id_token beside token", []string{"id_token", "token"}, true},
		{"code alone", []string{"code"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bag := NewResultBag()
			bag.Add(NewResult(KeyResponseTypes, tc.types))

			res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bag)
			require.NoError(t, err)
			require.Equal(t, tc.want, res.Value())
		})
	}
}

func TestRequestedClaimsRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := &RequestedClaimsRule{}

	withScopes := func(scopes ...string) *ResultBag {
		bag := NewResultBag()
		bag.Add(NewResult(KeyScopes, scopes))
		return bag
	}

	t.Run("absence yields a nil value, not an error", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), withScopes("openid"))
		require.NoError(t, err)

		cr, ok := res.Value().(*ClaimsRequest)
		require.True(t, ok)
		require.Nil(t, cr)
	})

	t.Run("standard claims are scope filtered", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"claims": {`{"id_token":{"email":null,"name":null}}`},
		}), withScopes("openid", "email"))
		require.NoError(t, err)

		cr := res.Value().(*ClaimsRequest)
		require.Contains(t, cr.IDToken, "email")
		require.NotContains(t, cr.IDToken, "name")
	})

	t.Run("vendor keys pass through verbatim", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"claims": {`{"id_token":{"https://example.com/tier":{"value":"gold"}}}`},
		}), withScopes("openid"))
		require.NoError(t, err)

		cr := res.Value().(*ClaimsRequest)
		require.Contains(t, cr.IDToken, "https://example.com/tier")
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"claims": {`{not json`},
		}), withScopes("openid"))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("empty bag is a dependency error", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())

		var dep *DependencyError
		require.ErrorAs(t, err, &dep)
	})
}

func TestAcrValuesRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := &AcrValuesRule{}

	withClaims := func(cr *ClaimsRequest) *ResultBag {
		bag := NewResultBag()
		bag.Add(NewResult(KeyRequestedClaims, cr))
		return bag
	}

	t.Run("absence yields a nil value", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), withClaims(nil))
		require.NoError(t, err)
		require.Nil(t, res.Value())
	})

	t.Run("acr_values parameter", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"acr_values": {"urn:mace:silver urn:mace:bronze"},
		}), withClaims(nil))
		require.NoError(t, err)
		require.Equal(t, []string{"urn:mace:silver", "urn:mace:bronze"}, res.Value())
	})

	t.Run("claims-parameter acr entry takes precedence", func(t *testing.T) {
		cr := &ClaimsRequest{IDToken: map[string]any{
			"acr": map[string]any{"values": []any{"urn:mace:gold"}},
		}}

		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"acr_values": {"urn:mace:silver"},
		}), withClaims(cr))
		require.NoError(t, err)
		require.Equal(t, []string{"urn:mace:gold"}, res.Value())
	})

	t.Run("empty bag is a dependency error", func(t *testing.T) {
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())

		var dep *DependencyError
		require.ErrorAs(t, err, &dep)
	})
}

func TestAdvisoryParamRules(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("max_age absent yields a typed nil", func(t *testing.T) {
		rule := &MaxAgeRule{}
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())
		require.NoError(t, err)
		require.Equal(t, (*int64)(nil), res.Value())
	})

	t.Run("max_age must be a non-negative integer", func(t *testing.T) {
		rule := &MaxAgeRule{}
		for _, raw := range []string{"-1", "abc", "1.5"} {
			_, err := rule.Check(ctx, authorizeRequest(t, url.Values{"max_age": {raw}}), NewResultBag())
			require.ErrorIs(t, err, oidcerr.ErrInvalidRequest, "max_age=%s", raw)
		}
	})

	t.Run("prompt none is exclusive", func(t *testing.T) {
		rule := &PromptRule{}
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"prompt": {"none login"},
		}), NewResultBag())
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("ui_locales drops malformed tags instead of failing", func(t *testing.T) {
		rule := &UILocalesRule{}
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{
			"ui_locales": {"en-AU not!a!tag fr"},
		}), NewResultBag())
		require.NoError(t, err)
		require.Equal(t, []string{"en-AU", "fr"}, res.Value())
	})

	t.Run("ui_locales absent yields a nil value", func(t *testing.T) {
		rule := &UILocalesRule{}
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())
		require.NoError(t, err)
		require.Equal(t, []string(nil), res.Value())
	})
}
