package domain

import "time"

// AccessToken is the server-side record of an issued access token, keyed by
// the token's jti. Needed for cascade revocation when an authorization code
// is replayed.
type AccessToken struct {
	ID         string
	ClientID   string
	UserID     string
	AuthCodeID string // empty when not issued via the code grant
	Scopes     []string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// RefreshToken is the server-side record of an issued refresh token. The
// token itself is a sealed payload; the row carries revocation state.
type RefreshToken struct {
	ID            string
	ClientID      string
	UserID        string
	AuthCodeID    string // empty when not descended from a code grant
	AccessTokenID string
	Scopes        []string
	ExpiresAt     time.Time
	CreatedAt     time.Time
	RevokedAt     *time.Time
}

// Revoked reports whether the access token has been revoked.
func (t *AccessToken) Revoked() bool { return t.RevokedAt != nil }

// Revoked reports whether the refresh token has been revoked.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }
