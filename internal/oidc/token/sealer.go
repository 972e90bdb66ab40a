package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tabsync/oidcd/pkg/cryptox"
)

// ErrInvalidToken covers any sealed token that cannot be opened: wrong
// encoding, wrong key, truncated or tampered ciphertext. Callers get no
// finer detail than that.
var ErrInvalidToken = errors.New("token: invalid sealed token")

// Sealer turns payload structs into opaque URL-safe strings and back.
// Sealed tokens are authenticated ciphertext, so anything a client hands
// back is either byte-for-byte what we issued or rejected outright.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from the given secret material.
func NewSealer(material []byte) (*Sealer, error) {
	if len(material) == 0 {
		return nil, errors.New("token: sealing key material is empty")
	}
	return &Sealer{key: cryptox.DeriveSealKey(material)}, nil
}

// SealCode encrypts an authorization code payload.
func (s *Sealer) SealCode(p *CodePayload) (string, error) {
	return s.seal(p)
}

// OpenCode decrypts and decodes an authorization code.
func (s *Sealer) OpenCode(sealed string) (*CodePayload, error) {
	var p CodePayload
	if err := s.open(sealed, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SealRefresh encrypts a refresh token payload.
func (s *Sealer) SealRefresh(p *RefreshPayload) (string, error) {
	return s.seal(p)
}

// OpenRefresh decrypts and decodes a refresh token.
func (s *Sealer) OpenRefresh(sealed string) (*RefreshPayload, error) {
	var p RefreshPayload
	if err := s.open(sealed, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SealSession encrypts a session handle for cookie transport.
func (s *Sealer) SealSession(p *SessionPayload) (string, error) {
	return s.seal(p)
}

// OpenSession decrypts and decodes a session handle.
func (s *Sealer) OpenSession(sealed string) (*SessionPayload, error) {
	var p SessionPayload
	if err := s.open(sealed, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Sealer) seal(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("token: encode payload: %w", err)
	}
	sealed, err := cryptox.Seal(s.key, plaintext)
	if err != nil {
		return "", fmt.Errorf("token: seal payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) open(sealed string, payload any) error {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return ErrInvalidToken
	}
	plaintext, err := cryptox.Open(s.key, raw)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(plaintext, payload); err != nil {
		return ErrInvalidToken
	}
	return nil
}
