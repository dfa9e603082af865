package jwt

import (
	"encoding/json"
	"net/http"

	"transport-connect/internal/domain/user"
)

// AuthMiddlewareFunc validates tokens and injects claims into the request context.
// Without allowed roles every valid role passes.
func AuthMiddlewareFunc(mgr *Manager, allowedRoles ...user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, err := FromRequest(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := mgr.ParseAndValidate(raw)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if err := RoleAllowed(claims, allowedRoles...); err != nil {
				writeAuthError(w, http.StatusForbidden, err.Error())
				return
			}

			next(w, r.WithContext(InjectClaims(r.Context(), claims)))
		}
	}
}

// RequireClaims extracts JWT claims from the request context.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
