package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"jobgate.org/internal/auth"
	"jobgate.org/internal/obs"
)

// ReadyProbe reports readiness, typically by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes transport behavior.
type Options struct {
	Version       string
	SecureCookies bool
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer over the company session service.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	readyProbe ReadyProbe
	cookies    cookieGateway
	version    string

	rateBurst     int
	ratePerSecond int
}

// New wires routes. The auth endpoints live under the refresh cookie path so
// the browser only attaches the long-lived cookie where it is needed.
func New(svc *auth.Service, rp ReadyProbe, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		cookies: cookieGateway{
			secure:     opts.SecureCookies,
			accessTTL:  svc.Tokens().TTL(),
			refreshTTL: svc.RefreshTTL(),
		},
		version:       opts.Version,
		rateBurst:     opts.RateBurst,
		ratePerSecond: opts.RatePerSecond,
	}

	a.mux.HandleFunc(authBasePath+"/login", a.handleLogin)
	a.mux.HandleFunc(authBasePath+"/refresh", a.handleRefresh)
	a.mux.HandleFunc(authBasePath+"/logout", a.handleLogout)
	a.mux.HandleFunc(authBasePath+"/session", a.handleSession)
	a.mux.HandleFunc(authBasePath+"/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc(authBasePath+"/reset-password", a.handleResetPassword)
	a.mux.HandleFunc(authBasePath+"/change-password", a.handleChangePassword)
	a.mux.HandleFunc(authBasePath+"/set-password", a.handleSetPassword)

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuthn(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "jobgate-company-auth",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func requestMetadata(r *http.Request) auth.RequestMetadata {
	return auth.RequestMetadata{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// writeServerError logs the cause and answers with a generic message so
// persistence details never leak.
func writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	obs.LogEntry(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "error",
		"msg":   "request failed",
		"path":  r.URL.Path,
		"error": err.Error(),
	})
	writeError(w, http.StatusInternalServerError, "internal server error")
}
