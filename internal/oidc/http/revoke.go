package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/token"
	"github.com/tabsync/oidcd/pkg/cryptox"
	"github.com/tabsync/oidcd/pkg/httpx"
	"github.com/tabsync/oidcd/pkg/jwtx"
	"github.com/tabsync/oidcd/pkg/slogx"
)

// RevokeHandler serves the token revocation endpoint (RFC 7009). Unknown
// and foreign tokens are acknowledged without effect; the endpoint never
// confirms whether a token existed.
type RevokeHandler struct {
	Store    store.Store
	Sealer   *token.Sealer
	Verifier jwtx.Verifier
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a refresh or access token (RFC 7009). Returns 200 regardless of whether the token was active.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint"	Enums(refresh_token, access_token)
//	@Param			client_id		formData	string	false	"Client identifier"
//	@Param			client_secret	formData	string	false	"Client secret"
//	@Success		200	{object}	nil
//	@Failure		401	{object}	oidcerr.Error	"error, error_description"
//	@Router			/revoke [post]
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		writeTokenError(w, r, oidcerr.ErrInvalidContentType)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, r, oidcerr.ErrInvalidFormBody)
		return
	}

	client, err := authenticateClient(ctx, h.Store.Clients(), r, r.PostForm)
	if err != nil {
		writeTokenError(w, r, err)
		return
	}

	presented := r.PostForm.Get("token")
	if presented == "" {
		writeTokenError(w, r, oidcerr.ErrInvalidRequest.WithDescription("token is required"))
		return
	}

	now := time.Now()
	hint := r.PostForm.Get("token_type_hint")

	// The hint only orders the attempts; a miss falls through to the other
	// kind (RFC 7009 §2.1).
	revoked := false
	if hint != "access_token" {
		revoked = h.revokeRefresh(r, client.ID, presented, now)
	}
	if !revoked && hint != "refresh_token" {
		revoked = h.revokeAccess(r, client.ID, presented, now)
	}
	if !revoked && hint == "access_token" {
		revoked = h.revokeRefresh(r, client.ID, presented, now)
	}

	if revoked {
		// Fingerprint, never the token itself.
		slogx.FromContext(ctx).Info("token revoked",
			"client_id", client.ID,
			"token_fingerprint", cryptox.FingerprintToken(presented))
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *RevokeHandler) revokeRefresh(r *http.Request, clientID, presented string, now time.Time) bool {
	payload, err := h.Sealer.OpenRefresh(presented)
	if err != nil || payload.ClientID != clientID {
		return false
	}
	return h.Store.RefreshTokens().Revoke(r.Context(), payload.ID, now) == nil
}

func (h *RevokeHandler) revokeAccess(r *http.Request, clientID, presented string, now time.Time) bool {
	claims, err := h.Verifier.Verify(presented)
	if err != nil {
		return false
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != clientID {
		return false
	}
	return h.Store.AccessTokens().Revoke(r.Context(), claims.ID, now) == nil
}
