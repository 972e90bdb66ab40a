package domain

import "time"

// User is the end-user record the host identity system resolved for us.
// Only the attributes surfaced as OIDC claims live here.
type User struct {
	ID            string
	Username      string
	Name          string
	GivenName     string
	FamilyName    string
	Email         string
	EmailVerified bool
	Phone         string
	PhoneVerified bool
	Address       string
	Locale        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
