package grant

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/pkg/slogx"
)

// PreAuthCodeGrant implements the OID4VCI pre-authorized code flow. Codes
// are handed to the user out of band, so the authorization endpoint has no
// part to play here; only the token exchange exists.
type PreAuthCodeGrant struct {
	deps *Deps
}

// NewPreAuthCodeGrant wires the grant to its collaborators.
func NewPreAuthCodeGrant(deps *Deps) *PreAuthCodeGrant {
	return &PreAuthCodeGrant{deps: deps}
}

func (g *PreAuthCodeGrant) Name() string { return TypePreAuthorizedCode }

func (g *PreAuthCodeGrant) CanRespondToAuthorizationRequest(ar *AuthorizationRequest) bool {
	return false
}

func (g *PreAuthCodeGrant) CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest, sess *domain.Session) (*url.URL, error) {
	return nil, oidcerr.ErrInvalidRequest.WithDescription("the pre-authorized code grant does not serve authorization requests")
}

func (g *PreAuthCodeGrant) CanRespondToAccessTokenRequest(grantType string) bool {
	return grantType == TypePreAuthorizedCode
}

// RespondToAccessTokenRequest exchanges a pre-authorized code for an access
// token. The token carries no scopes; what it is good for lives in the
// echoed authorization_details.
func (g *PreAuthCodeGrant) RespondToAccessTokenRequest(ctx context.Context, tr *TokenRequest) (*TokenResponse, error) {
	if !tr.Client.AllowsGrantType(TypePreAuthorizedCode) {
		return nil, oidcerr.ErrUnauthorizedClient.WithDescription("client may not use the pre-authorized code grant")
	}

	code := tr.Param("pre-authorized_code")
	if code == "" {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("pre-authorized_code is required")
	}

	// A client narrowing the request with authorization_details must send a
	// well-formed JSON array; garbage is refused before the code is touched.
	if raw := tr.Param("authorization_details"); raw != "" {
		if _, err := validAuthorizationDetails([]byte(raw)); err != nil {
			return nil, oidcerr.ErrInvalidRequest.WithDescription("authorization_details must be a JSON array")
		}
	}

	now := g.deps.now()

	var resp *TokenResponse
	err := g.deps.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.PreAuthorizedCodes().FindByID(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return oidcerr.ErrInvalidGrant.WithDescription("pre-authorized code is invalid")
			}
			return err
		}

		if rec.ClientID != tr.Client.ID {
			return oidcerr.ErrInvalidGrant.WithDescription("pre-authorized code was issued to another client")
		}
		if rec.Revoked() {
			return oidcerr.ErrInvalidGrant.WithDescription("pre-authorized code has already been used")
		}
		if rec.Expired(now) {
			return oidcerr.ErrInvalidGrant.WithDescription("pre-authorized code has expired")
		}

		if rec.TxCode != "" {
			presented := tr.Param("tx_code")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(rec.TxCode)) != 1 {
				return oidcerr.ErrInvalidGrant.WithDescription("tx_code does not match")
			}
		}

		details, err := validAuthorizationDetails(rec.AuthorizationDetails)
		if err != nil {
			// A row with garbage details is a provisioning bug. Surface it
			// loudly instead of issuing a token for unknown credentials.
			slogx.FromContext(ctx).Error("pre-authorized code has malformed authorization_details",
				"code_id", rec.ID, "error", err)
			return oidcerr.ErrServerError.WithDescription("pre-authorized code is misconfigured")
		}

		if err := tx.PreAuthorizedCodes().Revoke(ctx, code, now); err != nil {
			return err
		}

		access, _, err := g.deps.issueAccessToken(ctx, tx, tr.Client, rec.UserID, "", "", nil, now)
		if err != nil {
			return err
		}

		resp = &TokenResponse{
			AccessToken:          access,
			TokenType:            "Bearer",
			ExpiresIn:            int64(g.deps.AccessTokenTTL.Seconds()),
			AuthorizationDetails: details,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// validAuthorizationDetails checks the raw details are a JSON array. It
// guards both the stored row and the request parameter; empty input is
// allowed and yields nothing to echo.
func validAuthorizationDetails(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
