package grant

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	oidcclaims "github.com/tabsync/oidcd/internal/oidc/claims"
	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/rules"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

// acrNotApplicable is the acr claim value when no authentication context
// can be asserted for the session.
const acrNotApplicable = "N/A"

// IDTokenIssuer mints ID tokens. It owns the claim assembly rules: which
// user attributes go in, how the acr is resolved, and the at_hash/c_hash
// bindings to sibling artifacts.
type IDTokenIssuer struct {
	Issuer string
	Keys   *jwtx.KeyManager
	Users  store.Users
	TTL    time.Duration

	// CookieACR is the acr asserted for cookie-authenticated sessions.
	// Empty disables the assertion.
	CookieACR string
}

// IDTokenParams collects everything one ID token depends on.
type IDTokenParams struct {
	ClientID  string
	UserID    string
	Scopes    []string
	Nonce     string
	AcrValues []string
	Session   *domain.Session

	// ACR, when set, is used verbatim instead of resolving from the
	// session. Token-endpoint issuance replays the value captured at
	// authorization time.
	ACR string

	// AccessToken and Code, when set, produce at_hash and c_hash.
	AccessToken string
	Code        string

	// Claims carries the requested-claims filter. Its id_token section is
	// honored only when EmbedClaims is set; otherwise claims stay on the
	// userinfo side.
	Claims      *rules.ClaimsRequest
	EmbedClaims bool

	Now time.Time
}

// Issue builds and signs the ID token.
func (i *IDTokenIssuer) Issue(ctx context.Context, p IDTokenParams) (string, error) {
	acr := p.ACR
	if acr == "" {
		acr = i.resolveACR(p.AcrValues, p.Session)
	}

	claims := jwt.MapClaims{
		"iss": i.Issuer,
		"sub": p.UserID,
		"aud": p.ClientID,
		"iat": p.Now.Unix(),
		"exp": p.Now.Add(i.TTL).Unix(),
		"acr": acr,
	}

	if p.Nonce != "" {
		claims["nonce"] = p.Nonce
	}
	if p.Session != nil {
		claims["sid"] = p.Session.ID
		if !p.Session.AuthTime.IsZero() {
			claims["auth_time"] = p.Session.AuthTime.Unix()
		}
		if len(p.Session.AMR) > 0 {
			claims["amr"] = p.Session.AMR
		}
	}
	if p.AccessToken != "" {
		claims["at_hash"] = jwtx.LeftmostHalfHash(p.AccessToken)
	}
	if p.Code != "" {
		claims["c_hash"] = jwtx.LeftmostHalfHash(p.Code)
	}

	if p.EmbedClaims && p.Claims != nil && len(p.Claims.IDToken) > 0 {
		if err := i.embedUserClaims(ctx, claims, p); err != nil {
			return "", err
		}
	}

	signer := i.Keys.GetSigner()
	if signer == nil {
		return "", fmt.Errorf("grant: no signing key available")
	}
	signed, err := signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("grant: sign id token: %w", err)
	}
	return signed, nil
}

// embedUserClaims resolves the requested id_token claims against the user
// record and writes them into the claim set.
func (i *IDTokenIssuer) embedUserClaims(ctx context.Context, claims jwt.MapClaims, p IDTokenParams) error {
	user, err := i.Users.FindByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("grant: resolve user for id token: %w", err)
	}

	translator := oidcclaims.NewTranslator(p.Scopes)
	available := translator.ForUser(user)
	for name := range p.Claims.IDToken {
		if value, ok := available[name]; ok {
			claims[name] = value
		}
	}
	return nil
}

// resolveACR picks the acr claim value. Cookie sessions assert the
// configured cookie ACR when the request allows it; anything else falls
// back to "N/A" rather than omitting the claim.
func (i *IDTokenIssuer) resolveACR(requested []string, sess *domain.Session) string {
	if sess != nil && sess.CookieAuth && i.CookieACR != "" {
		if len(requested) == 0 || slices.Contains(requested, i.CookieACR) {
			return i.CookieACR
		}
	}
	return acrNotApplicable
}
