package http

import (
	"net/http"

	"github.com/tabsync/oidcd/pkg/httpx"
	"github.com/tabsync/oidcd/pkg/jwtx"
)

// JWKSHandler serves the public key set clients verify our signatures
// against.
func JWKSHandler(keys *jwtx.KeySet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	})
}
