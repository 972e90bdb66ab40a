package rules

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabsync/oidcd/internal/oidc/oidcerr"
)

type stubRule struct {
	key  Key
	deps []Key
	err  error
}

func (r *stubRule) Key() Key         { return r.key }
func (r *stubRule) DependsOn() []Key { return r.deps }

func (r *stubRule) Check(ctx context.Context, req *Request, bag *ResultBag) (*Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	result := NewResult(r.key, string(r.key))
	return &result, nil
}

func TestVerifyOrder(t *testing.T) {
	t.Parallel()

	t.Run("accepts a well ordered list", func(t *testing.T) {
		list := []Rule{
			&stubRule{key: KeyClient},
			&stubRule{key: KeyRedirectURI, deps: []Key{KeyClient}},
			&stubRule{key: KeyScopes, deps: []Key{KeyClient, KeyRedirectURI}},
		}
		require.NoError(t, VerifyOrder(list))
	})

	t.Run("rejects a dependency on a later rule", func(t *testing.T) {
		list := []Rule{
			&stubRule{key: KeyRedirectURI, deps: []Key{KeyClient}},
			&stubRule{key: KeyClient},
		}

		err := VerifyOrder(list)
		require.Error(t, err)

		var dep *DependencyError
		require.ErrorAs(t, err, &dep)
		require.Equal(t, KeyClient, dep.Key)
	})

	t.Run("seeded keys satisfy dependencies", func(t *testing.T) {
		list := []Rule{
			&stubRule{key: KeyRedirectURI, deps: []Key{KeyClient}},
		}
		require.NoError(t, VerifyOrder(list, KeyClient))
	})
}

func TestManagerCheck(t *testing.T) {
	t.Parallel()

	newReq := func(t *testing.T) *Request {
		t.Helper()
		req, err := NewRequest(httptest.NewRequest("GET", "/authorize", nil))
		require.NoError(t, err)
		return req
	}

	t.Run("runs rules in order and collects results", func(t *testing.T) {
		m := NewManager()
		list := []Rule{
			&stubRule{key: KeyClient},
			&stubRule{key: KeyState},
		}

		bag, err := m.Check(context.Background(), newReq(t), list)
		require.NoError(t, err)
		require.Equal(t, []Key{KeyClient, KeyState}, bag.Keys())
	})

	t.Run("fails fast and returns the partial bag", func(t *testing.T) {
		m := NewManager()
		list := []Rule{
			&stubRule{key: KeyClient},
			&stubRule{key: KeyState, err: oidcerr.ErrInvalidRequest},
			&stubRule{key: KeyScopes},
		}

		bag, err := m.Check(context.Background(), newReq(t), list)
		require.ErrorIs(t, err, oidcerr.ErrInvalidRequest)
		require.True(t, bag.Has(KeyClient))
		require.False(t, bag.Has(KeyScopes))
	})

	t.Run("seed continues a prior pass", func(t *testing.T) {
		m := NewManager()

		seed := NewResultBag()
		seed.Add(NewResult(KeyClient, "seeded"))

		bag, err := m.Check(context.Background(), newReq(t),
			[]Rule{&stubRule{key: KeyState}}, Seed(seed))
		require.NoError(t, err)
		require.True(t, bag.Has(KeyClient))
		require.True(t, bag.Has(KeyState))
	})

	t.Run("manager data reaches the request", func(t *testing.T) {
		m := NewManager()
		m.SetData(DataDefaultScope, "openid")

		req := newReq(t)
		_, err := m.Check(context.Background(), req, nil)
		require.NoError(t, err)
		require.Equal(t, "openid", req.DataString(DataDefaultScope))
	})

	t.Run("non protocol errors pass through unchanged", func(t *testing.T) {
		m := NewManager()
		boom := errors.New("backend down")
		list := []Rule{&stubRule{key: KeyClient, err: boom}}

		_, err := m.Check(context.Background(), newReq(t), list)
		require.ErrorIs(t, err, boom)
	})
}
