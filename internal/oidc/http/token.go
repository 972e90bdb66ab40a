package http

import (
	"net/http"
	"strings"

	"github.com/tabsync/oidcd/internal/oidc/grant"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/pkg/httpx"
	"github.com/tabsync/oidcd/pkg/slogx"
)

// TokenHandler serves the token endpoint.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	Clients store.Clients
	Grants  []grant.Grant
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Exchanges grants for tokens (authorization_code, refresh_token, urn:ietf:params:oauth:grant-type:pre-authorized_code).
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type			formData	string	true	"Grant type"
//	@Param			code				formData	string	false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri		formData	string	false	"Redirect URI (when one was bound at authorization time)"
//	@Param			code_verifier		formData	string	false	"PKCE code verifier (when a challenge was bound)"
//	@Param			refresh_token		formData	string	false	"Refresh token (refresh_token grant)"
//	@Param			pre-authorized_code	formData	string	false	"Pre-authorized code (pre-authorized code grant)"
//	@Param			tx_code				formData	string	false	"Transaction code (when the pre-authorized code requires one)"
//	@Param			client_id			formData	string	false	"Client identifier (public clients)"
//	@Param			client_secret		formData	string	false	"Client secret (client_secret_post)"
//	@Param			scope				formData	string	false	"Scope narrowing (refresh_token grant)"
//	@Success		200	{object}	grant.TokenResponse	"access_token, token_type, expires_in, refresh_token, id_token, scope"
//	@Failure		400	{object}	oidcerr.Error		"error, error_description"
//	@Failure		401	{object}	oidcerr.Error		"error, error_description"
//	@Header			200	{string}	Cache-Control		"no-store"
//	@Router			/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		writeTokenError(w, r, oidcerr.ErrInvalidContentType)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, r, oidcerr.ErrInvalidFormBody)
		return
	}

	grantType := r.PostForm.Get("grant_type")
	if grantType == "" {
		writeTokenError(w, r, oidcerr.ErrInvalidRequest.WithDescription("grant_type is required"))
		return
	}

	var serving grant.Grant
	for _, g := range h.Grants {
		if g.CanRespondToAccessTokenRequest(grantType) {
			serving = g
			break
		}
	}
	if serving == nil {
		writeTokenError(w, r, oidcerr.ErrUnsupportedGrantType)
		return
	}

	client, err := authenticateClient(ctx, h.Clients, r, r.PostForm)
	if err != nil {
		writeTokenError(w, r, err)
		return
	}

	resp, err := serving.RespondToAccessTokenRequest(ctx, &grant.TokenRequest{
		GrantType: grantType,
		Client:    client,
		Form:      r.PostForm,
	})
	if err != nil {
		log.Warn("token request failed", "grant_type", grantType, "client_id", client.ID, "err", err)
		writeTokenError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// writeTokenError maps an error onto the RFC 6749 §5.2 response shape.
// Anything that is not a protocol error is logged and hidden behind
// server_error.
func writeTokenError(w http.ResponseWriter, r *http.Request, err error) {
	httpx.NoCache(w)
	if oe, ok := oidcerr.As(err); ok {
		if oe.Code == "invalid_client" {
			w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		}
		oe.Write(w)
		return
	}
	slogx.FromContext(r.Context()).Error("token endpoint failure", "err", err)
	oidcerr.ErrServerError.Write(w)
}
