package token

import (
	"time"

	"github.com/tabsync/oidcd/internal/oidc/rules"
)

// CodePayload is the plaintext of a sealed authorization code. The code a
// client receives is this structure encrypted; only the ID is persisted
// server-side, for replay tracking and cascade revocation.
type CodePayload struct {
	ID                  string              `json:"id"`
	ClientID            string              `json:"client_id"`
	UserID              string              `json:"user_id"`
	RedirectURI         string              `json:"redirect_uri,omitempty"`
	Scopes              []string            `json:"scopes"`
	CodeChallenge       string              `json:"code_challenge,omitempty"`
	CodeChallengeMethod string              `json:"code_challenge_method,omitempty"`
	Nonce               string              `json:"nonce,omitempty"`
	ACR                 string              `json:"acr,omitempty"`
	AMR                 []string            `json:"amr,omitempty"`
	AuthTime            int64               `json:"auth_time,omitempty"`
	SessionID           string              `json:"sid,omitempty"`
	Claims              *rules.ClaimsRequest `json:"claims,omitempty"`
	AddClaimsToIDToken  bool                `json:"add_claims_to_id_token,omitempty"`
	ExpiresAt           int64               `json:"exp"`
}

// Expired reports whether the code's lifetime has passed.
func (p *CodePayload) Expired(now time.Time) bool {
	return now.Unix() >= p.ExpiresAt
}

// SessionPayload is the plaintext of a sealed session handle. The host
// identity system seals one of these into a cookie after authenticating the
// end user; the authorization endpoint only consumes it.
type SessionPayload struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	AuthTime   int64    `json:"auth_time"`
	AMR        []string `json:"amr,omitempty"`
	CookieAuth bool     `json:"cookie_auth,omitempty"`
	ExpiresAt  int64    `json:"exp"`
}

// Expired reports whether the session handle's lifetime has passed.
func (p *SessionPayload) Expired(now time.Time) bool {
	return now.Unix() >= p.ExpiresAt
}

// RefreshPayload is the plaintext of a sealed refresh token. AuthCodeID
// links the token back to the authorization code that minted its family so
// a replayed code can revoke every descendant.
type RefreshPayload struct {
	ID         string   `json:"id"`
	ClientID   string   `json:"client_id"`
	UserID     string   `json:"user_id"`
	Scopes     []string `json:"scopes"`
	AuthCodeID string   `json:"auth_code_id,omitempty"`
	SessionID  string   `json:"sid,omitempty"`
	ACR        string   `json:"acr,omitempty"`
	AMR        []string `json:"amr,omitempty"`
	AuthTime   int64    `json:"auth_time,omitempty"`
	ExpiresAt  int64    `json:"exp"`
}

// Expired reports whether the refresh token's lifetime has passed.
func (p *RefreshPayload) Expired(now time.Time) bool {
	return now.Unix() >= p.ExpiresAt
}
