package rules

import "fmt"

// Key identifies a validation result inside a ResultBag. Each rule produces
// at most one result under its key.
type Key string

// Result keys produced by the request rules.
const (
	KeyClient                Key = "client"
	KeyRedirectURI           Key = "redirect_uri"
	KeyState                 Key = "state"
	KeyScopes                Key = "scopes"
	KeyOpenID                Key = "openid"
	KeyCodeChallenge         Key = "code_challenge"
	KeyCodeChallengeMethod   Key = "code_challenge_method"
	KeyNonce                 Key = "nonce"
	KeyAcrValues             Key = "acr_values"
	KeyRequestedClaims       Key = "requested_claims"
	KeyMaxAge                Key = "max_age"
	KeyPrompts               Key = "prompts"
	KeyResponseTypes         Key = "response_types"
	KeyAddClaimsToIDToken    Key = "add_claims_to_id_token"
	KeyOfflineAccess         Key = "offline_access"
	KeyRequestObject         Key = "request_object"
	KeyIDTokenHint           Key = "id_token_hint"
	KeyPostLogoutRedirectURI Key = "post_logout_redirect_uri"
	KeyUILocales             Key = "ui_locales"
)

// Result is an immutable key/value pair produced by a rule.
type Result struct {
	key   Key
	value any
}

// NewResult builds a result for the given key.
func NewResult(key Key, value any) Result {
	return Result{key: key, value: value}
}

func (r Result) Key() Key   { return r.key }
func (r Result) Value() any { return r.value }

// DependencyError reports a programming error: a rule (or grant) asked the
// bag for a result that no earlier rule produced. It is never translated
// into a protocol error; handlers surface it as HTTP 500.
type DependencyError struct {
	Key Key
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("rules: required result %q was never produced; check rule ordering", e.Key)
}

// ResultBag collects rule results in insertion order. Writing a key twice
// overwrites the value but keeps the original position, so iteration order
// stays deterministic.
type ResultBag struct {
	order  []Key
	values map[Key]Result
}

// NewResultBag returns an empty bag.
func NewResultBag() *ResultBag {
	return &ResultBag{values: make(map[Key]Result)}
}

// Add stores a result. Last write wins for duplicate keys.
func (b *ResultBag) Add(r Result) {
	if _, ok := b.values[r.key]; !ok {
		b.order = append(b.order, r.key)
	}
	b.values[r.key] = r
}

// Get returns the result for key, reporting presence.
func (b *ResultBag) Get(key Key) (Result, bool) {
	r, ok := b.values[key]
	return r, ok
}

// Has reports whether a result exists for key.
func (b *ResultBag) Has(key Key) bool {
	_, ok := b.values[key]
	return ok
}

// MustGet returns the result for key or a DependencyError when absent.
// Rules use this for declared dependencies; a failure here means the rule
// list was assembled in the wrong order.
func (b *ResultBag) MustGet(key Key) (Result, error) {
	r, ok := b.values[key]
	if !ok {
		return Result{}, &DependencyError{Key: key}
	}
	return r, nil
}

// Keys returns the insertion-ordered keys.
func (b *ResultBag) Keys() []Key {
	out := make([]Key, len(b.order))
	copy(out, b.order)
	return out
}

// Len returns the number of results.
func (b *ResultBag) Len() int { return len(b.values) }

/* Typed accessors. They return zero values for absent keys; use MustGet
   when absence is a programming error. */

// String returns the result as a string, or "" when absent.
func (b *ResultBag) String(key Key) string {
	if r, ok := b.values[key]; ok {
		if s, ok := r.value.(string); ok {
			return s
		}
	}
	return ""
}

// Strings returns the result as a string slice, or nil when absent.
func (b *ResultBag) Strings(key Key) []string {
	if r, ok := b.values[key]; ok {
		if s, ok := r.value.([]string); ok {
			return s
		}
	}
	return nil
}

// Bool returns the result as a bool, or false when absent.
func (b *ResultBag) Bool(key Key) bool {
	if r, ok := b.values[key]; ok {
		if v, ok := r.value.(bool); ok {
			return v
		}
	}
	return false
}
