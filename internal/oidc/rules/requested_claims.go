package rules

import (
	"context"
	"encoding/json"

	oidcclaims "github.com/tabsync/oidcd/internal/oidc/claims"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/pkg/httpx"
)

// ClaimsRequest is the parsed and scope-filtered claims parameter
// (OIDC Core §5.5).
type ClaimsRequest struct {
	IDToken  map[string]any `json:"id_token,omitempty"`
	UserInfo map[string]any `json:"userinfo,omitempty"`
}

// Empty reports whether no claims survived filtering.
func (c *ClaimsRequest) Empty() bool {
	return c == nil || (len(c.IDToken) == 0 && len(c.UserInfo) == 0)
}

// RequestedClaimsRule parses the claims parameter and filters it through
// the scope-to-claims translation: standard claims pass only when a granted
// scope unlocks them, vendor-specific keys pass through verbatim. Absence
// yields a nil value.
type RequestedClaimsRule struct{}

func (r *RequestedClaimsRule) Key() Key         { return KeyRequestedClaims }
func (r *RequestedClaimsRule) DependsOn() []Key { return []Key{KeyScopes} }

func (r *RequestedClaimsRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	if _, err := bag.MustGet(KeyScopes); err != nil {
		return nil, err
	}

	raw := req.Param("claims")
	if raw == "" {
		result := NewResult(KeyRequestedClaims, (*ClaimsRequest)(nil))
		return &result, nil
	}

	var parsed ClaimsRequest
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("claims parameter is not valid JSON")
	}

	translator := oidcclaims.NewTranslator(bag.Strings(KeyScopes))
	filtered := &ClaimsRequest{
		IDToken:  translator.Filter(parsed.IDToken),
		UserInfo: translator.Filter(parsed.UserInfo),
	}

	result := NewResult(KeyRequestedClaims, filtered)
	return &result, nil
}

// AcrValuesRule resolves the requested authentication context class
// references. A claims-parameter acr entry takes precedence over the
// acr_values parameter. Absence yields a nil value.
type AcrValuesRule struct{}

func (r *AcrValuesRule) Key() Key         { return KeyAcrValues }
func (r *AcrValuesRule) DependsOn() []Key { return []Key{KeyRequestedClaims} }

func (r *AcrValuesRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	claimsRes, err := bag.MustGet(KeyRequestedClaims)
	if err != nil {
		return nil, err
	}

	if cr, ok := claimsRes.Value().(*ClaimsRequest); ok && cr != nil {
		if values := acrFromClaims(cr.IDToken["acr"]); values != nil {
			result := NewResult(KeyAcrValues, values)
			return &result, nil
		}
	}

	values := httpx.ParseSpaceDelimitedFields(req.Param("acr_values"))
	result := NewResult(KeyAcrValues, values)
	return &result, nil
}

// acrFromClaims extracts acr values from a claims-parameter entry of the
// form {"value": "..."} or {"values": ["...", ...]}.
func acrFromClaims(entry any) []string {
	spec, ok := entry.(map[string]any)
	if !ok {
		return nil
	}

	if v, ok := spec["value"].(string); ok && v != "" {
		return []string{v}
	}

	raw, ok := spec["values"].([]any)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			values = append(values, s)
		}
	}
	return values
}
