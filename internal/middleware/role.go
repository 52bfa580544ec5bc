package middleware

import "net/http"

// RequireUserType admits only users of the given type. It must run after Auth.
func RequireUserType(userType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				deny(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			current, _ := UserTypeFromContext(r.Context())
			if current != userType {
				deny(w, http.StatusForbidden, "Access denied. "+userType+" account required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
