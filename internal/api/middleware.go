// Package api implements the finplan REST API using chi.
package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/finplan/internal/apperr"
	"github.com/starford/finplan/internal/subscription"
)

// Auth modes.
const (
	AuthDisabled = "disabled"
	AuthToken    = "token"
	AuthJWT      = "jwt"
)

// DefaultOwner owns all data when requests are not tied to a user.
const DefaultOwner = "local"

// AuthConfig controls how requests are authenticated.
//
// Mode controls how authentication is enforced:
//   - "disabled": every request acts as DefaultOwner with DefaultTier.
//   - "token": a static Bearer token; the caller acts as DefaultOwner.
//   - "jwt": an HS256 Bearer token; owner, tier and admin role come from its claims.
//
// Rate catalog edits require the admin role; disabled and token modes grant it.
type AuthConfig struct {
	Mode        string
	Token       string
	JWTSecret   []byte
	DefaultTier subscription.Tier
}

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// AuthMiddleware returns middleware that authenticates the request and stores
// the resulting principal in its context.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	tier := cfg.DefaultTier
	if tier == "" {
		tier = subscription.Free
	}
	// Without per-user identities the single local caller administers the catalog.
	local := subscription.Principal{Owner: DefaultOwner, Tier: tier, Admin: true}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who := local
			switch cfg.Mode {
			case AuthToken:
				raw, ok := bearer(r)
				if !ok || subtle.ConstantTimeCompare([]byte(raw), []byte(cfg.Token)) != 1 {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
			case AuthJWT:
				raw, ok := bearer(r)
				if !ok {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				p, err := subscription.ParseToken(cfg.JWTSecret, raw, tier)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				who = p
			}
			next.ServeHTTP(w, r.WithContext(subscription.WithPrincipal(r.Context(), who)))
		})
	}
}

// RequireAdmin rejects callers without the admin role with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !principal(r).Admin {
			writeError(w, "require admin", fmt.Errorf("admin role required: %w", apperr.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principal returns the caller set by AuthMiddleware.
func principal(r *http.Request) subscription.Principal {
	p, ok := subscription.FromContext(r.Context())
	if !ok {
		return subscription.Principal{Owner: DefaultOwner, Tier: subscription.Free}
	}
	return p
}
