package rbac

import "net/http"

var defaultChecker = NewChecker(nil)

// Require guards a route with a single permission. The role comes from the
// request context, placed there by the auth middleware; a request with no
// role at all is forbidden.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Has(role, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
