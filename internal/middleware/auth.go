package middleware

import (
	"net/http"

	"github.com/s/learnhub/internal/auth"
	"github.com/s/learnhub/internal/handlers"
)

// RequiredRole lets a request through when the session user has one of roles
// (any role when none are given). Unauthenticated requests are redirected to
// "/"; students whose account is no longer approved are signed out.
func RequiredRole(h *handlers.Handler, roles ...string) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if _, ok := h.GetAuthenticatedUserID(r); !ok {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			user, err := h.SessionUser(r)
			if err != nil {
				h.Fail(w, err)
				return
			}
			if user == nil {
				h.ClearSession(w, r)
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			if !user.IsAdmin() {
				if err := auth.CheckStatus(user); err != nil {
					h.ClearSession(w, r)
					handlers.JSONError(w, err.Error(), http.StatusForbidden)
					return
				}
			}

			if !hasRole(user.Role, roles) {
				handlers.Forbidden(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithUser(r.Context(), user)))
		}
	}
}

func hasRole(role string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
