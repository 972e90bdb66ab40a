package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer([]byte("test seal key material"))
	require.NoError(t, err)

	t.Run("authorization code", func(t *testing.T) {
		in := &CodePayload{
			ID:                  "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			ClientID:            "web-app",
			UserID:              "u1",
			RedirectURI:         "https://app.example.com/cb",
			Scopes:              []string{"openid", "email"},
			CodeChallenge:       "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
			CodeChallengeMethod: "S256",
			Nonce:               "n1",
			ACR:                 "urn:mace:silver",
			AMR:                 []string{"pwd"},
			AuthTime:            1767225600,
			SessionID:           "sess1",
			ExpiresAt:           time.Now().Add(5 * time.Minute).Unix(),
		}

		sealed, err := sealer.SealCode(in)
		require.NoError(t, err)

		out, err := sealer.OpenCode(sealed)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("refresh token", func(t *testing.T) {
		in := &RefreshPayload{
			ID:         "rt1",
			ClientID:   "web-app",
			UserID:     "u1",
			Scopes:     []string{"openid", "offline_access"},
			AuthCodeID: "ac1",
			SessionID:  "sess1",
			ExpiresAt:  time.Now().Add(time.Hour).Unix(),
		}

		sealed, err := sealer.SealRefresh(in)
		require.NoError(t, err)

		out, err := sealer.OpenRefresh(sealed)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("session handle", func(t *testing.T) {
		in := &SessionPayload{
			ID:        "sess1",
			UserID:    "u1",
			AuthTime:  1767225600,
			AMR:       []string{"pwd", "otp"},
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		}

		sealed, err := sealer.SealSession(in)
		require.NoError(t, err)

		out, err := sealer.OpenSession(sealed)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})
}

func TestSealerRejectsBadTokens(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer([]byte("test seal key material"))
	require.NoError(t, err)

	sealed, err := sealer.SealCode(&CodePayload{ID: "c1", ClientID: "web-app"})
	require.NoError(t, err)

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := []byte(sealed)
		tampered[len(tampered)-1] ^= 'x'

		_, err := sealer.OpenCode(string(tampered))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewSealer([]byte("a different key entirely"))
		require.NoError(t, err)

		_, err = other.OpenCode(sealed)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("not base64url", func(t *testing.T) {
		_, err := sealer.OpenCode("!!definitely not a token!!")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("cross-kind opens fail on shape, not silently succeed", func(t *testing.T) {
		// A sealed session is valid ciphertext; decoding it as a code must
		// still never panic and yields zero fields at worst.
		sealedSession, err := sealer.SealSession(&SessionPayload{ID: "s1"})
		require.NoError(t, err)

		p, err := sealer.OpenCode(sealedSession)
		if err == nil {
			require.Empty(t, p.ClientID)
		}
	})

	t.Run("empty key material is refused", func(t *testing.T) {
		_, err := NewSealer(nil)
		require.Error(t, err)
	})
}
