package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/domain"
	"github.com/tabsync/oidcd/internal/oidc/token"
)

// SessionCookieName is where the host identity system leaves the sealed
// session handle.
const SessionCookieName = "oidcd_session"

// ErrNoSession means the user agent carries no usable session. The
// authorization endpoint turns this into login_required.
var ErrNoSession = errors.New("http: no end-user session")

// SessionResolver extracts the established end-user session from a
// request. How the session came to be is the host's concern.
type SessionResolver interface {
	Resolve(r *http.Request) (*domain.Session, error)
}

// SessionResolverFunc adapts a function to SessionResolver.
type SessionResolverFunc func(r *http.Request) (*domain.Session, error)

func (f SessionResolverFunc) Resolve(r *http.Request) (*domain.Session, error) {
	return f(r)
}

// CookieSessionResolver reads a sealed session handle from the session
// cookie. Anything it cannot open or that has expired counts as no session.
type CookieSessionResolver struct {
	Sealer *token.Sealer

	// Now is the clock, swappable in tests. Nil means time.Now.
	Now func() time.Time
}

func (c *CookieSessionResolver) Resolve(r *http.Request) (*domain.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	payload, err := c.Sealer.OpenSession(cookie.Value)
	if err != nil {
		return nil, ErrNoSession
	}

	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	if payload.Expired(now) {
		return nil, ErrNoSession
	}

	return &domain.Session{
		ID:         payload.ID,
		UserID:     payload.UserID,
		AuthTime:   time.Unix(payload.AuthTime, 0),
		AMR:        payload.AMR,
		CookieAuth: payload.CookieAuth,
	}, nil
}
