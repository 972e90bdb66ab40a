package domain

import "time"

// Session is the already-established end-user session handed to us by the
// host identity system. How it was established (cookie, password form,
// external IdP) is its business; we only consume the outcome.
type Session struct {
	ID       string
	UserID   string
	AuthTime time.Time

	// AMR lists the authentication methods used, e.g. ["pwd","mfa"].
	AMR []string

	// CookieAuth is true when the session came from cookie-based
	// authentication, which pins the acr claim to the configured cookie ACR.
	CookieAuth bool
}
