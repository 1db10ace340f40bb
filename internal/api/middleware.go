package api

import (
	"context"
	"net/http"
	"strings"

	"vigia.dev/patroltrack/internal/auth"
	"vigia.dev/patroltrack/internal/store"
	"vigia.dev/patroltrack/internal/util"
)

type ctxKeyType string

const claimsKey ctxKeyType = "claims"

// verifyToken runs on every protected call. It is pure verification: the
// token's signature and expiry decide, the session store is never consulted.
func (api *Api) verifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if header == "" || len(parts) != 2 || parts[1] == "" {
			util.JsonError(w, http.StatusForbidden, "token not provided", "NO_TOKEN")
			return
		}
		claims, err := auth.ParseToken(api.config.JwtSecret, parts[1])
		if err != nil {
			util.JsonError(w, http.StatusUnauthorized, "token invalid or expired", "INVALID_TOKEN")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (api *Api) requireSupervisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claimsFrom(r).Role != store.RoleSupervisor {
			util.JsonError(w, http.StatusForbidden, "access denied, supervisors only", "NOT_SUPERVISOR")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(r *http.Request) *auth.Claims {
	return r.Context().Value(claimsKey).(*auth.Claims)
}
