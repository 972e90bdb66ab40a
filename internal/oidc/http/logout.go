package http

import (
	"net/http"
	"net/url"

	"github.com/tabsync/oidcd/internal/oidc/engine"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/rules"
	"github.com/tabsync/oidcd/pkg/httpx"
	"github.com/tabsync/oidcd/pkg/slogx"
)

// LogoutHandler serves RP-initiated logout (OIDC RP-Initiated Logout 1.0).
// The session cookie is cleared; when a validated post_logout_redirect_uri
// is present the user agent is sent there, state attached.
type LogoutHandler struct {
	Engine *engine.Engine
}

// ServeHTTP godoc
//
//	@Summary		OIDC RP-Initiated Logout Endpoint
//	@Description	Ends the local session. Redirects to post_logout_redirect_uri when it validates against the id_token_hint's client.
//	@Tags			OIDC
//	@Param			id_token_hint				query		string	false	"ID token previously issued to the client"
//	@Param			post_logout_redirect_uri	query		string	false	"Registered redirect target"
//	@Param			state						query		string	false	"Opaque client state, echoed on the redirect"
//	@Success		302	{string}	string	"Redirect to post_logout_redirect_uri"
//	@Success		204	{string}	string	"Logged out, no redirect requested"
//	@Failure		400	{object}	oidcerr.Error	"error, error_description"
//	@Router			/logout [get]
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := rules.NewRequest(r)
	if err != nil {
		writeLogoutError(w, r, err)
		return
	}

	bag, err := h.Engine.ValidateLogoutRequest(ctx, req)
	if err != nil {
		writeLogoutError(w, r, err)
		return
	}

	clearSessionCookie(w)

	target := bag.String(rules.KeyPostLogoutRedirectURI)
	if target == "" {
		httpx.NoCache(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	redirect, err := url.Parse(target)
	if err != nil {
		writeLogoutError(w, r, oidcerr.ErrInvalidRequest.WithDescription("post_logout_redirect_uri is not a valid URI"))
		return
	}
	if state := bag.String(rules.KeyState); state != "" {
		query := redirect.Query()
		query.Set("state", state)
		redirect.RawQuery = query.Encode()
	}

	httpx.NoCache(w)
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeLogoutError(w http.ResponseWriter, r *http.Request, err error) {
	httpx.NoCache(w)
	if oe, ok := oidcerr.As(err); ok {
		oe.Write(w)
		return
	}
	slogx.FromContext(r.Context()).Error("logout request failed", "err", err)
	oidcerr.ErrServerError.Write(w)
}
