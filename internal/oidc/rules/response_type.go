package rules

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/pkg/httpx"
)

// ResponseTypeRule parses response_type into its component set and checks
// the combination against what the server supports. Order within the
// parameter is not significant.
type ResponseTypeRule struct {
	supported map[string]struct{}
}

// NewResponseTypeRule builds the rule from the supported response type
// combinations, e.g. "code", "id_token", "code id_token".
func NewResponseTypeRule(supported ...string) *ResponseTypeRule {
	m := make(map[string]struct{}, len(supported))
	for _, combo := range supported {
		m[normalizeResponseType(combo)] = struct{}{}
	}
	return &ResponseTypeRule{supported: m}
}

func normalizeResponseType(combo string) string {
	fields := strings.Fields(combo)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func (r *ResponseTypeRule) Key() Key         { return KeyResponseTypes }
func (r *ResponseTypeRule) DependsOn() []Key { return nil }

func (r *ResponseTypeRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	raw := req.Param("response_type")
	if raw == "" {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("response_type is required")
	}

	types := httpx.ParseSpaceDelimitedFields(raw)
	if _, ok := r.supported[normalizeResponseType(raw)]; !ok {
		return nil, oidcerr.ErrUnsupportedResponseType.WithDescription("response_type %q is not supported", raw)
	}

	result := NewResult(KeyResponseTypes, types)
	return &result, nil
}

// RequiredNonceRule enforces the nonce parameter for flows that deliver an
// ID token straight from the authorization endpoint, where the nonce is the
// only replay binding available.
type RequiredNonceRule struct{}

func (r *RequiredNonceRule) Key() Key         { return KeyNonce }
func (r *RequiredNonceRule) DependsOn() []Key { return []Key{KeyResponseTypes} }

func (r *RequiredNonceRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	if _, err := bag.MustGet(KeyResponseTypes); err != nil {
		return nil, err
	}

	nonce := req.Param("nonce")
	if nonce == "" && slices.Contains(bag.Strings(KeyResponseTypes), "id_token") {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("nonce is required when response_type includes id_token")
	}

	result := NewResult(KeyNonce, nonce)
	return &result, nil
}

// AddClaimsToIDTokenRule decides whether requested claims are embedded in
// the ID token itself: true whenever response_type includes id_token,
// regardless of what else it carries.
type AddClaimsToIDTokenRule struct{}

func (r *AddClaimsToIDTokenRule) Key() Key         { return KeyAddClaimsToIDToken }
func (r *AddClaimsToIDTokenRule) DependsOn() []Key { return []Key{KeyResponseTypes} }

func (r *AddClaimsToIDTokenRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	if _, err := bag.MustGet(KeyResponseTypes); err != nil {
		return nil, err
	}

	add := slices.Contains(bag.Strings(KeyResponseTypes), "id_token")

	result := NewResult(KeyAddClaimsToIDToken, add)
	return &result, nil
}
