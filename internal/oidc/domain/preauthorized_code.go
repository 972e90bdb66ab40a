package domain

import "time"

// PreAuthorizedCode is a credential-issuance code handed to the user
// through an out-of-band channel (OID4VCI pre-authorized code flow).
type PreAuthorizedCode struct {
	ID       string
	ClientID string
	UserID   string

	// TxCode is the transaction code the user must present alongside the
	// pre-authorized code. Empty means no tx_code is required.
	TxCode string

	// AuthorizationDetails is the raw JSON array describing the
	// credentials this code is good for.
	AuthorizationDetails []byte

	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the code has been spent.
func (c *PreAuthorizedCode) Revoked() bool { return c.RevokedAt != nil }

// Expired reports whether the code is past its lifetime at the given time.
func (c *PreAuthorizedCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
