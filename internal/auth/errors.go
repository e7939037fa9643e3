package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input; safe to surface.
	ErrValidation = errors.New("auth: validation failed")

	// ErrInvalidCredentials covers unknown email, wrong password and
	// inactive member alike, so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrSessionExpired means the refresh token is missing, unknown,
	// revoked or past expiry. The transport layer clears both cookies.
	ErrSessionExpired = errors.New("auth: session expired")

	// ErrTokenReuse is an already-rotated refresh token being presented
	// again. It wraps ErrSessionExpired so transports treat it the same
	// way, while metrics can single it out as a compromise signal.
	ErrTokenReuse = fmt.Errorf("auth: refresh token reuse detected: %w", ErrSessionExpired)

	// ErrOTPInvalid and ErrOTPExpired are deliberately distinguishable.
	ErrOTPInvalid = errors.New("auth: reset code invalid")
	ErrOTPExpired = errors.New("auth: reset code expired")

	// ErrAccountDisabled is returned when an inactive member reaches the
	// reset or change-password paths.
	ErrAccountDisabled = errors.New("auth: account disabled")

	// ErrSetTokenInvalid covers a bad or expired onboarding link.
	ErrSetTokenInvalid = errors.New("auth: set-password link invalid or expired")

	// ErrInvalidToken indicates an access token failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrNotFound is the store-level miss sentinel.
	ErrNotFound = errors.New("auth: not found")
)
