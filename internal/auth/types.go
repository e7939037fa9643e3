package auth

import (
	"strings"
	"time"
)

// ApprovalStatus is the administrative lifecycle state of an organization.
type ApprovalStatus string

const (
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
	StatusPending  ApprovalStatus = "pending"
)

// Organization is a company account. Its primary email doubles as the
// fallback login identity when no member matches.
type Organization struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string // empty until first set during onboarding
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string

	// One-time onboarding token allowing the first password to be set.
	SetPasswordToken   string
	SetPasswordExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status derives the approval state from the lifecycle timestamps.
func (o *Organization) Status() ApprovalStatus {
	switch {
	case o.ApprovedAt != nil:
		return StatusApproved
	case o.RejectedAt != nil:
		return StatusRejected
	default:
		return StatusPending
	}
}

// IsApproved reports whether the organization passed review.
func (o *Organization) IsApproved() bool { return o.ApprovedAt != nil }

// OrganizationMember is a named login scoped to one organization. Member
// emails are globally unique, independent of the organization's own email.
type OrganizationMember struct {
	ID             string
	OrganizationID string
	Email          string
	PasswordHash   string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LedgerKind distinguishes the two record variants sharing the token ledger.
type LedgerKind string

const (
	KindRefresh LedgerKind = "refresh"
	KindOTP     LedgerKind = "otp"
)

// LedgerEntry is one hashed, expiring, revocable token at rest. Refresh
// tokens and reset codes share the table; Kind tells them apart. Entries are
// never deleted, only revoked, so the rotation chain stays auditable.
type LedgerEntry struct {
	ID                  string
	Kind                LedgerKind
	OrganizationID      string
	TokenHash           string
	LoginEmail          string
	ExpiresAt           time.Time
	CreatedByIP         string
	UserAgent           string
	RevokedAt           *time.Time
	ReplacedByTokenHash string
	CreatedAt           time.Time
}

// Revoked reports whether the entry has been consumed or invalidated.
func (e *LedgerEntry) Revoked() bool { return e.RevokedAt != nil }

// Expired reports whether the entry is past its stored expiry.
func (e *LedgerEntry) Expired(now time.Time) bool { return now.After(e.ExpiresAt) }

// Live reports whether the entry can still be redeemed.
func (e *LedgerEntry) Live(now time.Time) bool { return !e.Revoked() && !e.Expired(now) }

// RequestMetadata is audit context captured at issuance.
type RequestMetadata struct {
	IP        string
	UserAgent string
}

// ResolvedIdentity is the outcome of credential resolution: either the
// organization itself (Member == nil) or a named member plus its owner.
// LoginEmail is always the normalized email that resolved, and is the value
// persisted on ledger rows so later password updates hit the right record.
type ResolvedIdentity struct {
	Organization *Organization
	Member       *OrganizationMember
	LoginEmail   string
}

// IsMember reports whether a named member resolved rather than the owner.
func (ri ResolvedIdentity) IsMember() bool { return ri.Member != nil }

// PasswordHash returns the hash of the credential record that resolved.
func (ri ResolvedIdentity) PasswordHash() string {
	if ri.Member != nil {
		return ri.Member.PasswordHash
	}
	return ri.Organization.PasswordHash
}

// NormalizeEmail lowercases and trims a login email. Every lookup and every
// persisted login_email goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
