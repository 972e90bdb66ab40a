package domain

// Scope is a scope known to the server.
type Scope struct {
	Identifier  string
	Description string
}

// Well-known scope identifiers.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeAddress       = "address"
	ScopePhone         = "phone"
	ScopeOfflineAccess = "offline_access"
)
