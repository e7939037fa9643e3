package httpapi

import (
	"net/http"

	"jobgate.org/internal/auth"
)

// protectedPaths require a verified access token before the handler runs.
// Everything else under the auth base path authenticates by its own means
// (credentials, refresh cookie, OTP or onboarding token).
var protectedPaths = map[string]bool{
	authBasePath + "/session":         true,
	authBasePath + "/change-password": true,
}

// withAuthn verifies the access token (Authorization bearer first, session
// cookie as fallback) on protected routes and stores the claims in the
// request context.
func (a *API) withAuthn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !protectedPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.svc.Tokens().Verify(accessTokenFromRequest(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}
