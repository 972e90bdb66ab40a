package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/engine"
	"github.com/tabsync/oidcd/internal/oidc/grant"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/token"
	"github.com/tabsync/oidcd/pkg/httpx"
	"github.com/tabsync/oidcd/pkg/jwtx"
	"github.com/tabsync/oidcd/pkg/slogx"

	_ "github.com/tabsync/oidcd/api/oidcd" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store  store.Store
	sealer *token.Sealer

	Engine   *engine.Engine
	Grants   []grant.Grant
	Sessions SessionResolver

	// Discovery document inputs.
	Algorithm              string
	SupportedResponseTypes []string
	SupportedGrantTypes    []string
	SupportedScopes        []string
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	sealer *token.Sealer,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		sealer:       sealer,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuthorize()
	r.registerToken()
	r.registerLogout()
	r.registerWellKnown()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			OIDC Authorization Service API
//	@version		0.1.0
//	@description	OAuth2/OIDC authorization request validation and grant completion engine.
//	@description
//	@description				Issues authorization codes, access, refresh and ID tokens. Public keys are published on the JWKS endpoint.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuthorize() {
	h := &AuthorizeHandler{
		Engine:   r.Engine,
		Grants:   r.Grants,
		Sessions: r.Sessions,
	}

	// GET /authorize - lenient rate limit (first leg of the flow)
	r.Mux.Handle("GET /authorize",
		httpx.Chain(h, httpx.RateLimitByIP(httpx.LenientLimit)),
	)

	// POST /authorize - stricter, form submissions carry credentials-adjacent data
	r.Mux.Handle("POST /authorize",
		httpx.Chain(h, httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
}

func (r *Router) registerToken() {
	// POST /token - strict rate limit by IP (covers all grant types)
	tokenHandler := &TokenHandler{Clients: r.store.Clients(), Grants: r.Grants}
	r.Mux.Handle("POST /token",
		httpx.Chain(tokenHandler, httpx.RateLimitByIP(httpx.StrictLimit)),
	)

	// POST /revoke - moderate rate limit
	revokeHandler := &RevokeHandler{Store: r.store, Sealer: r.sealer, Verifier: r.verifier}
	r.Mux.Handle("POST /revoke",
		httpx.Chain(revokeHandler, httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
}

func (r *Router) registerLogout() {
	h := &LogoutHandler{Engine: r.Engine}
	r.Mux.Handle("GET /logout",
		httpx.Chain(h, httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
	r.Mux.Handle("POST /logout",
		httpx.Chain(h, httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
}

func (r *Router) registerWellKnown() {
	discovery := DiscoveryHandler(r.issuer, r.Algorithm,
		r.SupportedResponseTypes, r.SupportedGrantTypes, r.SupportedScopes)
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(discovery, httpx.RateLimitByIP(httpx.PublicLimit)),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys), httpx.RateLimitByIP(httpx.PublicLimit)),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
