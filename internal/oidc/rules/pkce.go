package rules

import (
	"context"
	"regexp"
	"strings"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
)

// codeChallengeRe is the RFC 7636 unreserved charset at the mandated length.
var codeChallengeRe = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

// CodeChallengeRule validates the PKCE code_challenge. Public clients must
// send one; confidential clients may omit it. An empty result is still
// produced so downstream rules can depend on the key unconditionally.
type CodeChallengeRule struct{}

func (r *CodeChallengeRule) Key() Key         { return KeyCodeChallenge }
func (r *CodeChallengeRule) DependsOn() []Key { return []Key{KeyClient} }

func (r *CodeChallengeRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	client, err := ClientFromBag(bag)
	if err != nil {
		return nil, err
	}

	challenge := req.Param("code_challenge")
	if challenge == "" {
		if !client.Confidential() {
			return nil, oidcerr.ErrInvalidRequest.WithDescription("code_challenge is required for public clients")
		}
		result := NewResult(KeyCodeChallenge, "")
		return &result, nil
	}

	if !codeChallengeRe.MatchString(challenge) {
		return nil, oidcerr.ErrInvalidRequest.WithDescription(
			"code_challenge must be 43-128 characters from the unreserved set")
	}

	result := NewResult(KeyCodeChallenge, challenge)
	return &result, nil
}

// CodeChallengeMethodRule validates code_challenge_method against the set
// of methods the verifier registry supports. The method is matched
// case-insensitively and normalized to its registered spelling; absence
// defaults to plain per RFC 7636.
type CodeChallengeMethodRule struct {
	// Methods are the accepted method names, e.g. from
	// grant.ChallengeRegistry.Methods(). Empty means plain and S256.
	Methods []string
}

func (r *CodeChallengeMethodRule) Key() Key         { return KeyCodeChallengeMethod }
func (r *CodeChallengeMethodRule) DependsOn() []Key { return []Key{KeyCodeChallenge} }

func (r *CodeChallengeMethodRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	challengeRes, err := bag.MustGet(KeyCodeChallenge)
	if err != nil {
		return nil, err
	}

	if challengeRes.Value().(string) == "" {
		// No challenge, no method.
		result := NewResult(KeyCodeChallengeMethod, "")
		return &result, nil
	}

	method := req.Param("code_challenge_method")
	if method == "" {
		method = "plain"
	}

	supported := r.Methods
	if len(supported) == 0 {
		supported = []string{"plain", "S256"}
	}

	for _, m := range supported {
		if strings.EqualFold(method, m) {
			result := NewResult(KeyCodeChallengeMethod, m)
			return &result, nil
		}
	}
	return nil, oidcerr.ErrInvalidRequest.WithDescription("unsupported code_challenge_method %q", method)
}
