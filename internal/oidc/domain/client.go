package domain

import "time"

// Client is a registered OAuth2/OIDC relying party.
type Client struct {
	ID           string
	Name         string
	SecretHash   string // empty for public clients
	RedirectURIs []string
	Scopes       []string // registered scope identifiers
	GrantTypes   []string // allowed grant types, empty means all

	// JWKS is the client's registered key set, used to verify signed
	// request objects. Raw JSON as registered.
	JWKS []byte

	// Protected clients must pass every authorization request as a signed
	// request object.
	Protected bool

	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confidential reports whether the client was issued a secret.
func (c *Client) Confidential() bool {
	return c.SecretHash != ""
}

// HasRedirectURI reports whether uri exactly matches a registered URI.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// HasScope reports whether the identifier is in the client's registration.
func (c *Client) HasScope(identifier string) bool {
	for _, s := range c.Scopes {
		if s == identifier {
			return true
		}
	}
	return false
}

// AllowsGrantType reports whether the client may use the given grant type.
// An empty registration allows everything.
func (c *Client) AllowsGrantType(gt string) bool {
	if len(c.GrantTypes) == 0 {
		return true
	}
	for _, g := range c.GrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}
