package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Organizations(ctx context.Context) OrganizationStore
	Members(ctx context.Context) MemberStore
	Ledger(ctx context.Context) LedgerStore
}

// OrganizationStore manages company accounts.
type OrganizationStore interface {
	Find(ctx context.Context, id string) (*Organization, error)
	FindByEmail(ctx context.Context, email string) (*Organization, error)
	FindBySetPasswordToken(ctx context.Context, token string) (*Organization, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// CompleteOnboarding stores the first password and clears the one-time
	// set-password token in a single statement.
	CompleteOnboarding(ctx context.Context, id, passwordHash string) error
}

// MemberStore manages named sub-user logins.
type MemberStore interface {
	FindByEmail(ctx context.Context, email string) (*OrganizationMember, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// LedgerStore manages the shared refresh/OTP token ledger. Revoke must be an
// atomic conditional update: it reports whether the row was still live when
// the revocation landed, which is what makes rotation race-free.
type LedgerStore interface {
	Create(ctx context.Context, e *LedgerEntry) error
	FindByHash(ctx context.Context, kind LedgerKind, tokenHash string) (*LedgerEntry, error)
	// Revoke marks the row revoked iff it is not already. replacedByHash is
	// stored on rotation and empty otherwise. Returns false when the row was
	// already revoked or does not exist.
	Revoke(ctx context.Context, kind LedgerKind, tokenHash string, at time.Time, replacedByHash string) (bool, error)
	// RevokeLiveByEmail revokes every live entry of the given kind for a
	// login email. Used to enforce the single-live-OTP invariant.
	RevokeLiveByEmail(ctx context.Context, kind LedgerKind, loginEmail string, at time.Time) error
}
