package grant

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/rules"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/token"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

// Grant names understood on the token endpoint.
const (
	TypeAuthorizationCode = "authorization_code"
	TypeRefreshToken      = "refresh_token"
	TypePreAuthorizedCode = "urn:ietf:params:oauth:grant-type:pre-authorized_code"
)

// Grant is one completion strategy for an authorization or token request.
// The same engine validates every authorization request; a grant decides
// what artifacts come out the other end.
type Grant interface {
	// Name identifies the grant in logs and configuration.
	Name() string

	// CanRespondToAuthorizationRequest reports whether this grant completes
	// the given validated authorization request.
	CanRespondToAuthorizationRequest(ar *AuthorizationRequest) bool

	// CompleteAuthorizationRequest produces the redirect the user agent is
	// sent back with. Only called after the request validated and the host
	// established the end-user session.
	CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest, sess *domain.Session) (*url.URL, error)

	// CanRespondToAccessTokenRequest reports whether this grant serves the
	// given grant_type on the token endpoint.
	CanRespondToAccessTokenRequest(grantType string) bool

	// RespondToAccessTokenRequest exchanges credentials for tokens.
	RespondToAccessTokenRequest(ctx context.Context, tr *TokenRequest) (*TokenResponse, error)
}

// AuthorizationRequest is the outcome of running the request rules: every
// parameter validated, defaulted and typed.
type AuthorizationRequest struct {
	Client              *domain.Client
	ResponseTypes       []string
	RedirectURI         string
	State               string
	Scopes              []string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	AcrValues           []string
	Claims              *rules.ClaimsRequest
	AddClaimsToIDToken  bool
	OfflineAccess       bool
	Prompts             []string
	MaxAge              *int64
}

// NewAuthorizationRequest assembles the request from a rule result bag.
// Every field the grants need must have been produced; a missing one is a
// rule ordering bug, surfaced as a DependencyError.
func NewAuthorizationRequest(bag *rules.ResultBag) (*AuthorizationRequest, error) {
	client, err := rules.ClientFromBag(bag)
	if err != nil {
		return nil, err
	}

	required := []rules.Key{
		rules.KeyResponseTypes, rules.KeyRedirectURI, rules.KeyState,
		rules.KeyScopes, rules.KeyNonce, rules.KeyCodeChallenge,
		rules.KeyCodeChallengeMethod, rules.KeyOfflineAccess,
		rules.KeyAddClaimsToIDToken, rules.KeyRequestedClaims,
		rules.KeyAcrValues,
	}
	for _, key := range required {
		if _, err := bag.MustGet(key); err != nil {
			return nil, err
		}
	}

	ar := &AuthorizationRequest{
		Client:              client,
		ResponseTypes:       bag.Strings(rules.KeyResponseTypes),
		RedirectURI:         bag.String(rules.KeyRedirectURI),
		State:               bag.String(rules.KeyState),
		Scopes:              bag.Strings(rules.KeyScopes),
		Nonce:               bag.String(rules.KeyNonce),
		CodeChallenge:       bag.String(rules.KeyCodeChallenge),
		CodeChallengeMethod: bag.String(rules.KeyCodeChallengeMethod),
		AcrValues:           bag.Strings(rules.KeyAcrValues),
		AddClaimsToIDToken:  bag.Bool(rules.KeyAddClaimsToIDToken),
		OfflineAccess:       bag.Bool(rules.KeyOfflineAccess),
		Prompts:             bag.Strings(rules.KeyPrompts),
	}
	if res, ok := bag.Get(rules.KeyRequestedClaims); ok {
		if cr, ok := res.Value().(*rules.ClaimsRequest); ok {
			ar.Claims = cr
		}
	}
	if res, ok := bag.Get(rules.KeyMaxAge); ok {
		if v, ok := res.Value().(*int64); ok {
			ar.MaxAge = v
		}
	}
	return ar, nil
}

// TokenRequest is a token endpoint call after client authentication.
type TokenRequest struct {
	GrantType string

	// Client is the authenticated caller. Public clients are identified by
	// client_id only.
	Client *domain.Client

	// Form gives access to the remaining request parameters.
	Form url.Values
}

// Param returns a single form parameter.
func (tr *TokenRequest) Param(name string) string {
	return tr.Form.Get(name)
}

// TokenResponse is the token endpoint success body (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken          string          `json:"access_token,omitempty"`
	TokenType            string          `json:"token_type,omitempty"`
	ExpiresIn            int64           `json:"expires_in,omitempty"`
	RefreshToken         string          `json:"refresh_token,omitempty"`
	IDToken              string          `json:"id_token,omitempty"`
	Scope                string          `json:"scope,omitempty"`
	AuthorizationDetails json.RawMessage `json:"authorization_details,omitempty"`
}

// Deps carries the collaborators every grant shares.
type Deps struct {
	Store    store.Store
	Keys     *jwtx.KeyManager
	Sealer   *token.Sealer
	IDTokens *IDTokenIssuer

	Issuer string

	CodeTTL         time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	Challenges *ChallengeRegistry

	// Now is the clock, swappable in tests. Nil means time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
