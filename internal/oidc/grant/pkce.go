package grant

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"slices"
)

// CodeChallengeVerifier checks a token-request code_verifier against the
// challenge captured at authorization time (RFC 7636).
type CodeChallengeVerifier interface {
	Method() string
	Verify(challenge, verifier string) bool
}

// ChallengeRegistry maps code_challenge_method names to verifiers.
type ChallengeRegistry struct {
	verifiers map[string]CodeChallengeVerifier
}

// NewChallengeRegistry returns a registry with the standard S256 and plain
// methods installed.
func NewChallengeRegistry() *ChallengeRegistry {
	r := &ChallengeRegistry{verifiers: make(map[string]CodeChallengeVerifier)}
	r.Register(s256Verifier{})
	r.Register(plainVerifier{})
	return r
}

// Register adds a verifier, replacing any prior one for the same method.
func (r *ChallengeRegistry) Register(v CodeChallengeVerifier) {
	r.verifiers[v.Method()] = v
}

// Methods lists the registered method names, sorted for stable output.
// Request validation consults this so the accepted methods always track
// what the registry can actually verify.
func (r *ChallengeRegistry) Methods() []string {
	methods := make([]string, 0, len(r.verifiers))
	for m := range r.verifiers {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	return methods
}

// Verify dispatches on method. Unknown methods never verify.
func (r *ChallengeRegistry) Verify(method, challenge, verifier string) bool {
	v, ok := r.verifiers[method]
	if !ok {
		return false
	}
	return v.Verify(challenge, verifier)
}

type s256Verifier struct{}

func (s256Verifier) Method() string { return "S256" }

func (s256Verifier) Verify(challenge, verifier string) bool {
	sum := sha256.Sum256([]byte(verifier))
	derived := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}

type plainVerifier struct{}

func (plainVerifier) Method() string { return "plain" }

func (plainVerifier) Verify(challenge, verifier string) bool {
	return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
}
