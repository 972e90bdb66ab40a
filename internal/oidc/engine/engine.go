// Package engine assembles the request rule lists and runs them. There is
// exactly one validation path for authorization-style requests; endpoints
// differ only in which rule list they hand the engine.
package engine

import (
	"context"
	"fmt"

	"github.com/tabsync/oidcd/internal/oidc/grant"
	"github.com/tabsync/oidcd/internal/oidc/rules"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

// Config carries everything rule construction needs.
type Config struct {
	Issuer string

	// Verifier checks id_token_hint values against our own signing keys.
	Verifier jwtx.Verifier

	Store store.Store

	// DefaultScope is applied when a request carries no scope parameter.
	DefaultScope string

	// ScopeDelimiter splits the scope parameter. Defaults to a space.
	ScopeDelimiter string

	// SupportedResponseTypes lists the response_type combinations the
	// server accepts, e.g. "code", "id_token", "id_token token".
	SupportedResponseTypes []string

	// CodeChallengeMethods lists the PKCE methods the verifier registry
	// supports, e.g. grant.ChallengeRegistry.Methods(). Empty means the
	// standard plain and S256 pair.
	CodeChallengeMethods []string
}

// Engine owns the rule manager and the assembled rule lists.
type Engine struct {
	manager   *rules.Manager
	authorize []rules.Rule
	logout    []rules.Rule
}

// New assembles the rule lists and verifies their ordering. An ordering
// failure is a programming error and aborts startup.
func New(cfg Config) (*Engine, error) {
	manager := rules.NewManager()
	manager.SetData(rules.DataDefaultScope, cfg.DefaultScope)
	if cfg.ScopeDelimiter != "" {
		manager.SetData(rules.DataScopeDelimiter, cfg.ScopeDelimiter)
	}

	authorize := []rules.Rule{
		&rules.ClientIDRule{Clients: cfg.Store.Clients()},
		&rules.RequestObjectRule{Issuer: cfg.Issuer},
		&rules.RedirectURIRule{},
		&rules.StateRule{},
		rules.NewResponseTypeRule(cfg.SupportedResponseTypes...),
		&rules.ScopeRule{Scopes: cfg.Store.Scopes()},
		&rules.RequiredOpenIDScopeRule{},
		&rules.OfflineAccessRule{},
		&rules.CodeChallengeRule{},
		&rules.CodeChallengeMethodRule{Methods: cfg.CodeChallengeMethods},
		&rules.RequiredNonceRule{},
		&rules.AddClaimsToIDTokenRule{},
		&rules.RequestedClaimsRule{},
		&rules.AcrValuesRule{},
		&rules.MaxAgeRule{},
		&rules.PromptRule{},
		&rules.UILocalesRule{},
	}
	if err := rules.VerifyOrder(authorize); err != nil {
		return nil, fmt.Errorf("engine: authorize rules: %w", err)
	}

	logout := []rules.Rule{
		&rules.IDTokenHintRule{Verifier: cfg.Verifier},
		&rules.PostLogoutRedirectURIRule{Clients: cfg.Store.Clients()},
		&rules.StateRule{},
		&rules.UILocalesRule{},
	}
	if err := rules.VerifyOrder(logout); err != nil {
		return nil, fmt.Errorf("engine: logout rules: %w", err)
	}

	return &Engine{manager: manager, authorize: authorize, logout: logout}, nil
}

// ValidateAuthorizationRequest runs the authorization rule list. The bag is
// returned even on failure so callers can deliver protocol errors to the
// already-validated redirect_uri.
func (e *Engine) ValidateAuthorizationRequest(ctx context.Context, req *rules.Request) (*grant.AuthorizationRequest, *rules.ResultBag, error) {
	bag, err := e.manager.Check(ctx, req, e.authorize)
	if err != nil {
		return nil, bag, err
	}

	ar, err := grant.NewAuthorizationRequest(bag)
	if err != nil {
		return nil, bag, err
	}
	return ar, bag, nil
}

// ValidateLogoutRequest runs the RP-initiated logout rule list.
func (e *Engine) ValidateLogoutRequest(ctx context.Context, req *rules.Request) (*rules.ResultBag, error) {
	return e.manager.Check(ctx, req, e.logout)
}
