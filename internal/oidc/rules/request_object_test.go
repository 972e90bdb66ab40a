package rules

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

const requestObjectIssuer = "https://id.test.example.com"

// newRequestObjectClient generates a client key pair and registers the public
// half as the client's JWKS, the way a protected client would be provisioned.
func newRequestObjectClient(t *testing.T, id string, protected bool) (*domain.Client, ed25519.PrivateKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	jwks, err := json.Marshal(jwtx.JWKS{
		Keys: []jwtx.JWK{jwtx.NewEd25519JWK("client-key-1", "sig", "EdDSA", pub)},
	})
	require.NoError(t, err)

	return &domain.Client{
		ID:        id,
		JWKS:      jwks,
		Protected: protected,
		Enabled:   true,
	}, priv
}

func signRequestObject(t *testing.T, key ed25519.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestRequestObjectRule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rule := &RequestObjectRule{Issuer: requestObjectIssuer}
	client, key := newRequestObjectClient(t, "signing-app", false)

	t.Run("absent object is fine for ordinary clients", func(t *testing.T) {
		res, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bagWithClient(client))
		require.NoError(t, err)
		require.Nil(t, res.Value().(jwt.MapClaims))
	})

	t.Run("protected clients must send one", func(t *testing.T) {
		locked, _ := newRequestObjectClient(t, "locked-app", true)
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), bagWithClient(locked))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
	})

	t.Run("verified claims shadow the outer parameters", func(t *testing.T) {
		signed := signRequestObject(t, key, "client-key-1", jwt.MapClaims{
			"iss":   "signing-app",
			"aud":   requestObjectIssuer,
			"exp":   time.Now().Add(time.Minute).Unix(),
			"scope": "openid email",
			"state": "inner-state",
		})

		req := authorizeRequest(t, url.Values{
			"request": {signed},
			"scope":   {"openid"},
			"nonce":   {"outer-nonce"},
		})

		res, err := rule.Check(ctx, req, bagWithClient(client))
		require.NoError(t, err)
		require.NotNil(t, res.Value())

		require.Equal(t, "openid email", req.Param("scope"))
		require.Equal(t, "inner-state", req.Param("state"))
		// Parameters the object does not mention stay untouched.
		require.Equal(t, "outer-nonce", req.Param("nonce"))
	})

	t.Run("issuer must be the client_id", func(t *testing.T) {
		signed := signRequestObject(t, key, "client-key-1", jwt.MapClaims{
			"iss": "someone-else",
			"aud": requestObjectIssuer,
		})

		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{"request": {signed}}), bagWithClient(client))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequestObject)
	})

	t.Run("audience must include this server", func(t *testing.T) {
		signed := signRequestObject(t, key, "client-key-1", jwt.MapClaims{
			"iss": "signing-app",
			"aud": "https://somewhere-else.example.com",
		})

		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{"request": {signed}}), bagWithClient(client))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequestObject)
	})

	t.Run("signature from an unregistered key is refused", func(t *testing.T) {
		_, strangerKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		signed := signRequestObject(t, strangerKey, "client-key-1", jwt.MapClaims{
			"iss": "signing-app",
			"aud": requestObjectIssuer,
		})

		_, err = rule.Check(ctx, authorizeRequest(t, url.Values{"request": {signed}}), bagWithClient(client))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequestObject)
	})

	t.Run("unknown kid is refused", func(t *testing.T) {
		signed := signRequestObject(t, key, "rotated-away", jwt.MapClaims{
			"iss": "signing-app",
			"aud": requestObjectIssuer,
		})

		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{"request": {signed}}), bagWithClient(client))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequestObject)
	})

	t.Run("client without registered keys cannot use one", func(t *testing.T) {
		keyless := &domain.Client{ID: "keyless-app", Enabled: true}
		signed := signRequestObject(t, key, "client-key-1", jwt.MapClaims{
			"iss": "keyless-app",
			"aud": requestObjectIssuer,
		})

		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{"request": {signed}}), bagWithClient(keyless))
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequestObject)
	})

	t.Run("needs the resolved client", func(t *testing.T) {
		var depErr *DependencyError
		_, err := rule.Check(ctx, authorizeRequest(t, url.Values{}), NewResultBag())
		require.ErrorAs(t, err, &depErr)
	})
}
