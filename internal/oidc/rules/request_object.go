package rules

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

var requestObjectAlgs = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodES256.Alg(),
	jwt.SigningMethodEdDSA.Alg(),
}

// RequestObjectRule verifies the request parameter (a signed request
// object) against the client's registered JWKS and overlays its claims on
// top of the outer request parameters. Protected clients must send one;
// for everyone else the parameter is optional.
type RequestObjectRule struct {
	// Issuer is this server's issuer identifier, expected in the request
	// object's aud claim.
	Issuer string
}

func (r *RequestObjectRule) Key() Key         { return KeyRequestObject }
func (r *RequestObjectRule) DependsOn() []Key { return []Key{KeyClient} }

func (r *RequestObjectRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	client, err := ClientFromBag(bag)
	if err != nil {
		return nil, err
	}

	raw := req.Param("request")
	if raw == "" {
		if client.Protected {
			return nil, oidcerr.ErrInvalidRequest.WithDescription("this client must pass a signed request object")
		}
		result := NewResult(KeyRequestObject, jwt.MapClaims(nil))
		return &result, nil
	}

	if len(client.JWKS) == 0 {
		return nil, oidcerr.ErrInvalidRequestObject.WithDescription("client has no registered keys")
	}

	registered, err := jwtx.ParseJWKS(client.JWKS)
	if err != nil {
		return nil, oidcerr.ErrInvalidRequestObject.WithDescription("client key set is malformed")
	}
	keyset := jwtx.NewKeySet()
	if err := keyset.ResetFromJWKS(registered); err != nil {
		return nil, oidcerr.ErrInvalidRequestObject.WithDescription("client key set is malformed")
	}

	parser := jwt.NewParser(jwt.WithValidMethods(requestObjectAlgs))
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid")
		}
		return keyset.Get(kid)
	})
	if err != nil || !token.Valid {
		return nil, oidcerr.ErrInvalidRequestObject.WithDescription("request object signature could not be verified")
	}

	if iss, _ := claims.GetIssuer(); iss != client.ID {
		return nil, oidcerr.ErrInvalidRequestObject.WithDescription("request object issuer must be the client_id")
	}
	if aud, _ := claims.GetAudience(); len(aud) > 0 && !slices.Contains(aud, r.Issuer) {
		return nil, oidcerr.ErrInvalidRequestObject.WithDescription("request object audience does not include this server")
	}
	if cid, ok := claims["client_id"].(string); ok && cid != client.ID {
		return nil, oidcerr.ErrInvalidRequestObject.WithDescription("request object client_id mismatch")
	}

	overlayRequestObject(req, claims)

	result := NewResult(KeyRequestObject, claims)
	return &result, nil
}

// overlayRequestObject shadows outer parameters with the request object's
// claims. Registered JWT claims and the request parameter itself are not
// authorization parameters and are skipped.
func overlayRequestObject(req *Request, claims jwt.MapClaims) {
	skip := map[string]struct{}{
		"iss": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
		"request": {}, "request_uri": {},
	}

	for name, value := range claims {
		if _, ok := skip[name]; ok {
			continue
		}
		switch v := value.(type) {
		case string:
			req.Override(name, v)
		case float64:
			req.Override(name, strconv.FormatInt(int64(v), 10))
		case bool:
			req.Override(name, strconv.FormatBool(v))
		}
	}
}
