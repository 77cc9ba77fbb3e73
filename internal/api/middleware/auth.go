package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/pkg/contracts"
	pkgmw "github.com/umsafe/umsafe/pkg/middleware"
)

// RequireAuth authenticates requests through the provider chain and
// stores the resulting Identity in the request context. Requests that no
// provider claims are rejected with 401: every route mounted behind this
// middleware needs a user to attribute messages and incidents to.
func RequireAuth(chain contracts.AuthProviderChain) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := chain.Authenticate(r.Context(), r)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
				unauthorized(w, "Authentication failed: "+err.Error())
				return
			}
			if identity == nil {
				unauthorized(w, "This endpoint requires authentication. Set Authorization: Bearer <token> or X-API-Key header.")
				return
			}

			ctx := pkgmw.SetIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="umsafe"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
