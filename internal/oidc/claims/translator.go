// Package claims maps granted scopes onto OIDC claims: which requested
// claims a client may receive, and which claim values a user record yields.
package claims

import (
	"github.com/tabsync/oidcd/internal/oidc/domain"
)

// scopeClaims lists the standard claims each OIDC scope unlocks
// (OIDC Core §5.4).
var scopeClaims = map[string][]string{
	domain.ScopeOpenID: {"sub"},
	domain.ScopeProfile: {
		"name", "family_name", "given_name", "middle_name", "nickname",
		"preferred_username", "profile", "picture", "website", "gender",
		"birthdate", "zoneinfo", "locale", "updated_at",
	},
	domain.ScopeEmail:   {"email", "email_verified"},
	domain.ScopeAddress: {"address"},
	domain.ScopePhone:   {"phone_number", "phone_number_verified"},
}

// standardClaims is the union of every claim any standard scope can unlock.
var standardClaims = func() map[string]string {
	m := make(map[string]string)
	for scope, names := range scopeClaims {
		for _, name := range names {
			m[name] = scope
		}
	}
	return m
}()

// Translator decides claim visibility for one set of granted scopes.
type Translator struct {
	allowed map[string]struct{}
}

// NewTranslator builds a Translator from the granted scope identifiers.
// Unknown scopes unlock nothing.
func NewTranslator(scopes []string) *Translator {
	allowed := make(map[string]struct{})
	for _, scope := range scopes {
		for _, name := range scopeClaims[scope] {
			allowed[name] = struct{}{}
		}
	}
	return &Translator{allowed: allowed}
}

// IsStandard reports whether name is a claim governed by a standard scope.
func IsStandard(name string) bool {
	_, ok := standardClaims[name]
	return ok
}

// Allowed reports whether the granted scopes unlock the standard claim.
func (t *Translator) Allowed(name string) bool {
	_, ok := t.allowed[name]
	return ok
}

// Filter reduces a requested-claims map to entries the client may receive:
// standard claims pass only when a granted scope unlocks them, while
// non-standard (vendor) keys pass through verbatim.
func (t *Translator) Filter(requested map[string]any) map[string]any {
	if requested == nil {
		return nil
	}
	out := make(map[string]any, len(requested))
	for name, spec := range requested {
		if IsStandard(name) {
			if t.Allowed(name) {
				out[name] = spec
			}
			continue
		}
		out[name] = spec
	}
	return out
}

// ForUser resolves the claim values the granted scopes expose for a user.
// The sub claim is the caller's concern since subject identifiers may be
// pairwise.
func (t *Translator) ForUser(u *domain.User) map[string]any {
	out := make(map[string]any)

	set := func(name string, v any) {
		if _, ok := t.allowed[name]; ok {
			out[name] = v
		}
	}

	if u.Name != "" {
		set("name", u.Name)
	}
	if u.GivenName != "" {
		set("given_name", u.GivenName)
	}
	if u.FamilyName != "" {
		set("family_name", u.FamilyName)
	}
	if u.Username != "" {
		set("preferred_username", u.Username)
	}
	if u.Locale != "" {
		set("locale", u.Locale)
	}
	if !u.UpdatedAt.IsZero() {
		set("updated_at", u.UpdatedAt.UTC().Unix())
	}
	if u.Email != "" {
		set("email", u.Email)
		set("email_verified", u.EmailVerified)
	}
	if u.Phone != "" {
		set("phone_number", u.Phone)
		set("phone_number_verified", u.PhoneVerified)
	}
	if u.Address != "" {
		set("address", map[string]any{"formatted": u.Address})
	}

	return out
}
