package claims

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabsync/oidcd/internal/oidc/domain"
)

func TestFilter(t *testing.T) {
	t.Parallel()

	t.Run("standard claims need an unlocking scope", func(t *testing.T) {
		tr := NewTranslator([]string{"openid", "email"})

		out := tr.Filter(map[string]any{
			"email":          nil,
			"name":           nil,
			"given_name":     map[string]any{"essential": true},
			"email_verified": nil,
		})

		require.Contains(t, out, "email")
		require.Contains(t, out, "email_verified")
		require.NotContains(t, out, "name")
		require.NotContains(t, out, "given_name")
	})

	t.Run("vendor keys pass through verbatim", func(t *testing.T) {
		tr := NewTranslator([]string{"openid"})

		spec := map[string]any{"value": "gold"}
		out := tr.Filter(map[string]any{
			"https://example.com/tier": spec,
			"x-custom-role":            nil,
		})

		require.Equal(t, spec, out["https://example.com/tier"])
		require.Contains(t, out, "x-custom-role")
	})

	t.Run("unknown scopes unlock nothing", func(t *testing.T) {
		tr := NewTranslator([]string{"banking"})

		out := tr.Filter(map[string]any{"email": nil})
		require.NotContains(t, out, "email")
	})

	t.Run("nil in, nil out", func(t *testing.T) {
		tr := NewTranslator([]string{"openid"})
		require.Nil(t, tr.Filter(nil))
	})
}

func TestForUser(t *testing.T) {
	t.Parallel()

	user := &domain.User{
		ID:            "u1",
		Username:      "jdoe",
		Name:          "Jordan Doe",
		GivenName:     "Jordan",
		FamilyName:    "Doe",
		Email:         "jdoe@example.com",
		EmailVerified: true,
		Phone:         "+61400000000",
		Address:       "1 Example St",
		Locale:        "en-AU",
		UpdatedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("profile scope exposes profile attributes only", func(t *testing.T) {
		tr := NewTranslator([]string{"openid", "profile"})
		out := tr.ForUser(user)

		require.Equal(t, "Jordan Doe", out["name"])
		require.Equal(t, "jdoe", out["preferred_username"])
		require.Equal(t, "en-AU", out["locale"])
		require.NotContains(t, out, "email")
		require.NotContains(t, out, "phone_number")
		require.NotContains(t, out, "address")
	})

	t.Run("email scope pairs the address with its verification flag", func(t *testing.T) {
		tr := NewTranslator([]string{"openid", "email"})
		out := tr.ForUser(user)

		require.Equal(t, "jdoe@example.com", out["email"])
		require.Equal(t, true, out["email_verified"])
		require.NotContains(t, out, "name")
	})

	t.Run("address is formatted", func(t *testing.T) {
		tr := NewTranslator([]string{"address"})
		out := tr.ForUser(user)

		require.Equal(t, map[string]any{"formatted": "1 Example St"}, out["address"])
	})

	t.Run("empty attributes are omitted", func(t *testing.T) {
		tr := NewTranslator([]string{"openid", "profile", "email"})
		out := tr.ForUser(&domain.User{ID: "u2", Username: "min"})

		require.Equal(t, "min", out["preferred_username"])
		require.NotContains(t, out, "email")
		require.NotContains(t, out, "name")
	})
}
