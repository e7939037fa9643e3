package httpapi

import (
	"errors"
	"net/http"
	"time"

	"jobgate.org/internal/audit"
	"jobgate.org/internal/auth"
	"jobgate.org/internal/obs"
)

// organizationPayload is the public view of a company account.
type organizationPayload struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

func toOrganizationPayload(org *auth.Organization) organizationPayload {
	return organizationPayload{
		ID:         org.ID,
		Name:       org.Name,
		Email:      org.Email,
		Status:     string(org.Status()),
		IsApproved: org.IsApproved(),
		CreatedAt:  org.CreatedAt,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin authenticates company credentials and installs the cookie
// pair. The response never distinguishes unknown emails from bad passwords.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeValidationError(w, map[string]string{
			"email":    "required",
			"password": "required",
		})
		return
	}

	result, err := a.svc.Login(r.Context(), req.Email, req.Password, requestMetadata(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.CountLogin("invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, auth.ErrValidation):
			obs.CountLogin("validation")
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			obs.CountLogin("error")
			writeServerError(w, r, err)
		}
		return
	}
	obs.CountLogin("ok")

	a.cookies.setAccess(w, result.AccessToken)
	a.cookies.setRefresh(w, result.RefreshToken)

	_ = audit.LogEvent(r.Context(), "company.login", map[string]any{
		"organization_id": result.Organization.ID,
		"login_email":     result.LoginEmail,
		"ip":              clientIP(r),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id":   result.Organization.ID,
		"name":              result.Organization.Name,
		"email":             result.Organization.Email,
		"status":            string(result.Organization.Status()),
		"is_approved":       result.Organization.IsApproved(),
		"login_email":       result.LoginEmail,
		"access_expires_at": result.AccessExpiresAt.UTC(),
	})
}

// handleRefresh rotates the refresh cookie. Every rejection clears the pair:
// the browser holds a dead credential and replaying it is pointless at best
// and a reuse signal at worst.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	result, err := a.svc.Rotate(r.Context(), refreshTokenFromRequest(r), requestMetadata(r))
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			if errors.Is(err, auth.ErrTokenReuse) {
				obs.CountRotation("reuse")
				_ = audit.LogEvent(r.Context(), "company.token.reuse", map[string]any{
					"ip": clientIP(r),
				})
			} else {
				obs.CountRotation("expired")
			}
			a.cookies.clear(w)
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		obs.CountRotation("error")
		writeServerError(w, r, err)
		return
	}
	obs.CountRotation("ok")

	a.cookies.setAccess(w, result.AccessToken)
	a.cookies.setRefresh(w, result.RefreshToken)

	_ = audit.LogEvent(r.Context(), "company.token.rotated", map[string]any{
		"organization_id": result.OrganizationID,
		"ip":              clientIP(r),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id":   result.OrganizationID,
		"access_expires_at": result.AccessExpiresAt.UTC(),
	})
}

// handleLogout revokes the presented refresh token and clears the cookie
// pair. Idempotent: a missing or already-dead token still returns success.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := a.svc.Revoke(r.Context(), refreshTokenFromRequest(r)); err != nil {
		writeServerError(w, r, err)
		return
	}
	a.cookies.clear(w)
	_ = audit.LogEvent(r.Context(), "company.logout", map[string]any{
		"ip": clientIP(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleSession returns the organization behind a verified access token.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	org, err := a.svc.Organization(r.Context(), claims.OrganizationID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			a.cookies.clear(w)
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		writeServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"organization": toOrganizationPayload(org),
		"login_email":  claims.Email,
	})
}

type forgotPasswordRequest struct {
	Email  string `json:"email"`
	Locale string `json:"locale"`
}

// handleForgotPassword issues a reset code. The response is identical for
// known and unknown emails.
func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		writeValidationError(w, map[string]string{"email": "required"})
		return
	}

	if err := a.svc.RequestReset(r.Context(), req.Email, req.Locale); err != nil {
		writeServerError(w, r, err)
		return
	}
	// Logged for every request: the body must not reveal whether the email
	// resolved, but the audit trail may.
	_ = audit.LogEvent(r.Context(), "company.reset.requested", map[string]any{
		"login_email": auth.NormalizeEmail(req.Email),
		"ip":          clientIP(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"detail": "if the email is registered, a reset code has been sent",
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// handleResetPassword redeems an OTP code and sets the new password.
func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := a.svc.ConfirmReset(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			obs.CountResetConfirm("validation")
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrOTPExpired):
			obs.CountResetConfirm("expired")
			writeError(w, http.StatusBadRequest, "reset code expired")
		case errors.Is(err, auth.ErrOTPInvalid):
			obs.CountResetConfirm("invalid")
			writeError(w, http.StatusBadRequest, "invalid reset code")
		case errors.Is(err, auth.ErrAccountDisabled):
			obs.CountResetConfirm("disabled")
			writeError(w, http.StatusForbidden, "account is disabled")
		default:
			obs.CountResetConfirm("error")
			writeServerError(w, r, err)
		}
		return
	}
	obs.CountResetConfirm("ok")

	_ = audit.LogEvent(r.Context(), "company.reset.confirmed", map[string]any{
		"login_email": auth.NormalizeEmail(req.Email),
		"ip":          clientIP(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_updated"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword updates the password of the authenticated login.
func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		methodNotAllowed(w, "PUT, POST")
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := a.svc.ChangePassword(r.Context(), claims.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "current password is incorrect")
		case errors.Is(err, auth.ErrAccountDisabled):
			writeError(w, http.StatusForbidden, "account is disabled")
		default:
			writeServerError(w, r, err)
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "company.password.changed", map[string]any{
		"ip": clientIP(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_updated"})
}

type setPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleSetPassword completes onboarding with the one-time emailed token.
func (a *API) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req setPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := a.svc.SetInitialPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrSetTokenInvalid):
			writeError(w, http.StatusBadRequest, "invalid or expired token")
		default:
			writeServerError(w, r, err)
		}
		return
	}
	_ = audit.LogEvent(r.Context(), "company.password.set", map[string]any{
		"ip": clientIP(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_set"})
}
