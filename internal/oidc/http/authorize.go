package http

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/engine"
	"github.com/tabsync/oidcd/internal/oidc/grant"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/rules"
	"github.com/tabsync/oidcd/pkg/httpx"
	"github.com/tabsync/oidcd/pkg/slogx"
)

// AuthorizeHandler serves the authorization endpoint. Validation is the
// engine's job; this handler picks the completing grant, resolves the
// end-user session and delivers the outcome, including protocol errors, to
// the client's redirect_uri.
type AuthorizeHandler struct {
	Engine   *engine.Engine
	Grants   []grant.Grant
	Sessions SessionResolver
}

// ServeHTTP godoc
//
//	@Summary		OAuth2/OIDC Authorization Endpoint
//	@Description	Validates the authorization request and completes it with the matching grant (authorization code or implicit).
//	@Tags			OAuth2
//	@Produce		json
//	@Param			client_id				query		string	true	"Client identifier"
//	@Param			response_type			query		string	true	"Response type"	Enums(code, id_token, id_token token)
//	@Param			redirect_uri			query		string	false	"Redirect URI (required unless exactly one is registered)"
//	@Param			scope					query		string	false	"Space-delimited scopes; openid is required"
//	@Param			state					query		string	false	"Opaque client state, echoed on the redirect"
//	@Param			nonce					query		string	false	"Replay binding (required when response_type includes id_token)"
//	@Param			code_challenge			query		string	false	"PKCE code challenge (required for public clients)"
//	@Param			code_challenge_method	query		string	false	"PKCE method"	Enums(plain, S256)
//	@Param			claims					query		string	false	"OIDC claims request (JSON)"
//	@Param			acr_values				query		string	false	"Requested authentication context class references"
//	@Param			request					query		string	false	"Signed request object (JWS)"
//	@Success		302	{string}	string	"Redirect to the client with code or tokens"
//	@Failure		400	{object}	oidcerr.Error	"error, error_description"
//	@Router			/authorize [get]
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := rules.NewRequest(r)
	if err != nil {
		writeAuthorizeError(w, r, nil, err)
		return
	}

	ar, bag, err := h.Engine.ValidateAuthorizationRequest(ctx, req)
	if err != nil {
		writeAuthorizeError(w, r, bag, err)
		return
	}

	var completing grant.Grant
	for _, g := range h.Grants {
		if g.CanRespondToAuthorizationRequest(ar) {
			completing = g
			break
		}
	}
	if completing == nil {
		writeAuthorizeError(w, r, bag,
			oidcerr.ErrUnsupportedResponseType.WithDescription("no grant can complete this response_type"))
		return
	}

	sess, err := h.Sessions.Resolve(r)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			writeAuthorizeError(w, r, bag, oidcerr.ErrLoginRequired)
			return
		}
		writeAuthorizeError(w, r, bag, err)
		return
	}

	if stale(ar, sess.AuthTime) {
		writeAuthorizeError(w, r, bag, oidcerr.ErrLoginRequired.WithDescription("authentication is older than max_age"))
		return
	}

	redirect, err := completing.CompleteAuthorizationRequest(ctx, ar, sess)
	if err != nil {
		writeAuthorizeError(w, r, bag, err)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// stale reports whether the session's authentication is older than the
// request's max_age allows.
func stale(ar *grant.AuthorizationRequest, authTime time.Time) bool {
	if ar.MaxAge == nil || authTime.IsZero() {
		return false
	}
	return time.Since(authTime) > time.Duration(*ar.MaxAge)*time.Second
}

// writeAuthorizeError delivers an authorization error. Errors raised before
// the redirect_uri validated, and any internal failure, never redirect
// (RFC 6749 §4.1.2.1); everything else goes back to the client with the
// request state attached. Fragment delivery is used when the request asked
// for a fragment response.
func writeAuthorizeError(w http.ResponseWriter, r *http.Request, bag *rules.ResultBag, err error) {
	oe, ok := oidcerr.As(err)
	if !ok {
		var dep *rules.DependencyError
		if errors.As(err, &dep) {
			slogx.FromContext(r.Context()).Error("rule dependency failure", "err", err)
		} else {
			slogx.FromContext(r.Context()).Error("authorization request failed", "err", err)
		}
		oe = oidcerr.ErrServerError
	}

	redirectURI := ""
	if bag != nil {
		redirectURI = bag.String(rules.KeyRedirectURI)
	}
	if redirectURI == "" || oe.StatusCode >= http.StatusInternalServerError {
		httpx.NoCache(w)
		oe.Write(w)
		return
	}

	target, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		httpx.NoCache(w)
		oe.Write(w)
		return
	}

	params := url.Values{}
	params.Set("error", oe.Code)
	if oe.Description != "" {
		params.Set("error_description", oe.Description)
	}
	if state := bag.String(rules.KeyState); state != "" {
		params.Set("state", state)
	}

	types := bag.Strings(rules.KeyResponseTypes)
	if slices.Contains(types, "id_token") || slices.Contains(types, "token") {
		target.Fragment = params.Encode()
	} else {
		query := target.Query()
		for k, vs := range params {
			for _, v := range vs {
				query.Set(k, v)
			}
		}
		target.RawQuery = query.Encode()
	}

	httpx.NoCache(w)
	http.Redirect(w, r, target.String(), http.StatusFound)
}
