package domain

import "time"

// AuthorizationCode tracks an issued authorization code for replay
// detection. The code handed to the client is a sealed payload carrying the
// grant details; this row only records issuance and revocation state keyed
// by the payload's identifier.
type AuthorizationCode struct {
	ID        string
	ClientID  string
	UserID    string
	Scopes    []string
	SessionID string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the code has been spent or cascaded.
func (c *AuthorizationCode) Revoked() bool {
	return c.RevokedAt != nil
}

// Expired reports whether the code is past its lifetime at the given time.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
