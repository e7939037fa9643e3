package httpapi

import (
	"net/http"
	"time"
)

const (
	authBasePath = "/v1/company/auth"

	accessCookieName  = "jobgate_company_access"
	refreshCookieName = "jobgate_company_refresh"
)

// cookieGateway owns the session cookie pair. The access cookie is sent
// site-wide; the refresh cookie is scoped to the auth path so the long-lived
// credential only travels to the endpoints that redeem it. Both are HttpOnly
// and SameSite=Strict; Secure follows the environment.
type cookieGateway struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (g cookieGateway) setAccess(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (g cookieGateway) setRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     authBasePath,
		MaxAge:   int(g.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clear expires both cookies. Called on logout and on every refresh
// rejection so the browser stops replaying a dead credential.
func (g cookieGateway) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     authBasePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func refreshTokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func accessTokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && h[:len(prefix)] == prefix {
			return h[len(prefix):]
		}
		return ""
	}
	c, err := r.Cookie(accessCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
