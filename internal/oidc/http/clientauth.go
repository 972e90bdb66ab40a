package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/pkg/cryptox"
)

// authenticateClient resolves and authenticates the token-endpoint caller.
// Confidential clients use client_secret_basic or client_secret_post;
// public clients identify with client_id alone. Basic credentials win when
// both are present (RFC 6749 §2.3.1 forbids sending both, we fail closed).
func authenticateClient(ctx context.Context, clients store.Clients, r *http.Request, form url.Values) (*domain.Client, error) {
	basicID, basicSecret, hasBasic := r.BasicAuth()
	formID := form.Get("client_id")
	formSecret := form.Get("client_secret")

	if hasBasic && formSecret != "" {
		return nil, oidcerr.ErrInvalidRequest.WithDescription("multiple client authentication methods used")
	}

	clientID := formID
	secret := formSecret
	if hasBasic {
		// Basic credentials are form-urlencoded before base64 (RFC 6749
		// appendix B).
		if id, err := url.QueryUnescape(basicID); err == nil {
			clientID = id
		} else {
			clientID = basicID
		}
		if s, err := url.QueryUnescape(basicSecret); err == nil {
			secret = s
		} else {
			secret = basicSecret
		}
	}

	if clientID == "" {
		return nil, oidcerr.ErrInvalidClient.WithDescription("client authentication required")
	}
	if hasBasic && formID != "" && formID != clientID {
		return nil, oidcerr.ErrInvalidClient.WithDescription("client_id does not match the authenticated client")
	}

	client, err := clients.GetEnabled(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oidcerr.ErrInvalidClient.WithDescription("unknown client")
		}
		return nil, err
	}

	if client.Confidential() {
		if secret == "" {
			return nil, oidcerr.ErrInvalidClient.WithDescription("client authentication required")
		}
		if err := cryptox.VerifySecret(secret, client.SecretHash); err != nil {
			return nil, oidcerr.ErrInvalidClient.WithDescription("client authentication failed")
		}
	} else if secret != "" {
		return nil, oidcerr.ErrInvalidClient.WithDescription("public client must not send a secret")
	}

	return client, nil
}
