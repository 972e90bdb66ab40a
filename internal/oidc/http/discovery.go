package http

import (
	"net/http"
	"strings"

	"github.com/tabsync/oidcd/pkg/httpx"
)

// DiscoveryDocument is the OpenID Provider Metadata
// (openid-connect-discovery §3).
type DiscoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	EndSessionEndpoint                string   `json:"end_session_endpoint,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ClaimsParameterSupported          bool     `json:"claims_parameter_supported"`
	RequestParameterSupported         bool     `json:"request_parameter_supported"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
}

// DiscoveryHandler serves the discovery document. The document is static
// for the process lifetime, so it is built once.
func DiscoveryHandler(issuer, algorithm string, responseTypes, grantTypes, scopes []string) http.Handler {
	base := strings.TrimRight(issuer, "/")
	doc := DiscoveryDocument{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		JWKSURI:                           base + "/.well-known/jwks.json",
		RevocationEndpoint:                base + "/revoke",
		EndSessionEndpoint:                base + "/logout",
		ResponseTypesSupported:            responseTypes,
		GrantTypesSupported:               grantTypes,
		ScopesSupported:                   scopes,
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{algorithm},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
		ClaimsParameterSupported:          true,
		RequestParameterSupported:         true,
		ClaimsSupported: []string{
			"sub", "iss", "aud", "exp", "iat", "auth_time", "nonce", "acr",
			"amr", "sid", "name", "given_name", "family_name",
			"preferred_username", "email", "email_verified", "phone_number",
			"phone_number_verified", "address", "locale", "updated_at",
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, doc)
	})
}
