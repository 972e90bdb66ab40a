package rules

import (
	"net/http"
	"slices"
	"strings"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
)

// Data keys shared with rules through the request.
const (
	DataDefaultScope   = "default_scope"
	DataScopeDelimiter = "scope_delimiter"
)

// Request wraps an authorization-style HTTP request for rule consumption.
// Parameters come from the query string for GET and from the form body for
// POST; a verified request object can overlay parameters on top of both.
type Request struct {
	raw  *http.Request
	data map[string]any

	// overrides holds parameters lifted out of a verified request object.
	// They shadow the outer request parameters.
	overrides map[string]string
}

// NewRequest validates the HTTP method and form encoding and wraps the
// request. allowedMethods defaults to GET and POST when empty.
func NewRequest(r *http.Request, allowedMethods ...string) (*Request, error) {
	if len(allowedMethods) == 0 {
		allowedMethods = []string{http.MethodGet, http.MethodPost}
	}
	if !slices.Contains(allowedMethods, r.Method) {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("HTTP method %s is not allowed", r.Method)
	}

	if r.Method == http.MethodPost {
		ct := r.Header.Get("Content-Type")
		if ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			return nil, oidcerr.ErrInvalidContentType
		}
		if err := r.ParseForm(); err != nil {
			return nil, oidcerr.ErrInvalidFormBody
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, oidcerr.ErrInvalidFormBody
	}

	return &Request{
		raw:       r,
		data:      make(map[string]any),
		overrides: make(map[string]string),
	}, nil
}

// Param returns the named parameter, preferring request-object overrides,
// then the form body (POST), then the query string.
func (r *Request) Param(name string) string {
	if v, ok := r.overrides[name]; ok {
		return v
	}
	if r.raw.Method == http.MethodPost {
		if v := r.raw.PostForm.Get(name); v != "" {
			return v
		}
	}
	return r.raw.URL.Query().Get(name)
}

// Has reports whether the parameter is present at all, even if empty.
func (r *Request) Has(name string) bool {
	if _, ok := r.overrides[name]; ok {
		return true
	}
	if r.raw.Method == http.MethodPost {
		if _, ok := r.raw.PostForm[name]; ok {
			return true
		}
	}
	_, ok := r.raw.URL.Query()[name]
	return ok
}

// Override shadows a parameter with a value from a verified request object.
func (r *Request) Override(name, value string) {
	r.overrides[name] = value
}

// SetData attaches shared data for rules (default scope, delimiter).
func (r *Request) SetData(key string, value any) {
	r.data[key] = value
}

// Data returns shared data by key, or nil.
func (r *Request) Data(key string) any {
	return r.data[key]
}

// DataString returns shared string data by key, or "".
func (r *Request) DataString(key string) string {
	if v, ok := r.data[key].(string); ok {
		return v
	}
	return ""
}

// HTTP exposes the underlying request for context access.
func (r *Request) HTTP() *http.Request {
	return r.raw
}
