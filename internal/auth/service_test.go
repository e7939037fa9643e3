package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureMailer struct {
	to     string
	locale string
	code   string
	sends  int
	err    error
}

func (m *captureMailer) SendResetCode(_ context.Context, to, locale, code string, _ time.Duration) error {
	m.to = to
	m.locale = locale
	m.code = code
	m.sends++
	return m.err
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

// seedStore builds the canonical fixture: an approved organization with an
// active member, an inactive member, and a second organization whose primary
// email collides with a member of the first.
func seedStore(t *testing.T) *MemStore {
	t.Helper()
	store := NewMemStore()
	approved := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	store.PutOrganization(&Organization{
		ID:           "org-acme",
		Name:         "Acme Recruiting",
		Email:        "owner@acme.example",
		PasswordHash: mustHash(t, "owner-pass"),
		ApprovedAt:   &approved,
	})
	store.PutMember(&OrganizationMember{
		ID:             "mem-1",
		OrganizationID: "org-acme",
		Email:          "recruiter@acme.example",
		PasswordHash:   mustHash(t, "member-pass"),
		IsActive:       true,
	})
	store.PutMember(&OrganizationMember{
		ID:             "mem-2",
		OrganizationID: "org-acme",
		Email:          "former@acme.example",
		PasswordHash:   mustHash(t, "former-pass"),
		IsActive:       false,
	})

	// shared@ belongs to Globex as a primary email and to Acme as a member.
	store.PutOrganization(&Organization{
		ID:           "org-globex",
		Name:         "Globex Talent",
		Email:        "shared@example.com",
		PasswordHash: mustHash(t, "globex-pass"),
		ApprovedAt:   &approved,
	})
	store.PutMember(&OrganizationMember{
		ID:             "mem-shared",
		OrganizationID: "org-acme",
		Email:          "shared@example.com",
		PasswordHash:   mustHash(t, "shared-member-pass"),
		IsActive:       true,
	})
	return store
}

func newTestService(t *testing.T, store Store, opts ...ServiceOption) *Service {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret", "jobgate-test", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	svc, err := NewService(store, issuer, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestLoginAsOrganizationOwner(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store)

	result, err := svc.Login(context.Background(), "Owner@Acme.Example", "owner-pass", RequestMetadata{IP: "10.0.0.1", UserAgent: "test"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Organization.ID != "org-acme" {
		t.Fatalf("unexpected organization: %s", result.Organization.ID)
	}
	if result.LoginEmail != "owner@acme.example" {
		t.Fatalf("unexpected login email: %s", result.LoginEmail)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}

	claims, err := svc.Tokens().Verify(result.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.OrganizationID != "org-acme" {
		t.Fatalf("access token carries wrong organization: %s", claims.OrganizationID)
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != KindRefresh || e.TokenHash != HashToken(result.RefreshToken) {
		t.Fatalf("ledger row does not match issued token")
	}
	if e.TokenHash == result.RefreshToken {
		t.Fatalf("raw token must never be stored")
	}
	if e.CreatedByIP != "10.0.0.1" || e.UserAgent != "test" {
		t.Fatalf("request metadata not persisted: %+v", e)
	}
}

func TestLoginMemberWinsOverOrganizationEmail(t *testing.T) {
	svc := newTestService(t, seedStore(t))

	// shared@example.com is both Globex's primary email and an Acme member.
	// The member record must win, so only the member password works and the
	// session belongs to Acme.
	result, err := svc.Login(context.Background(), "shared@example.com", "shared-member-pass", RequestMetadata{})
	if err != nil {
		t.Fatalf("Login as member: %v", err)
	}
	if result.Organization.ID != "org-acme" {
		t.Fatalf("expected member's organization, got %s", result.Organization.ID)
	}

	if _, err := svc.Login(context.Background(), "shared@example.com", "globex-pass", RequestMetadata{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("organization password must not work when a member resolves, got %v", err)
	}
}

func TestLoginRejections(t *testing.T) {
	store := seedStore(t)
	store.PutOrganization(&Organization{
		ID:    "org-pending",
		Name:  "No Password Yet",
		Email: "pending@example.com",
	})
	svc := newTestService(t, store)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "whatever"},
		{"wrong password", "owner@acme.example", "wrong"},
		{"empty password", "owner@acme.example", ""},
		{"inactive member", "former@acme.example", "former-pass"},
		{"password never set", "pending@example.com", "anything"},
	}
	for _, tc := range cases {
		if _, err := svc.Login(context.Background(), tc.email, tc.password, RequestMetadata{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestRotateIssuesSuccessorAndRevokesPredecessor(t *testing.T) {
	store := seedStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, WithClock(func() time.Time { return now }))

	login, err := svc.Login(context.Background(), "owner@acme.example", "owner-pass", RequestMetadata{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := svc.Rotate(context.Background(), login.RefreshToken, RequestMetadata{IP: "10.0.0.2"})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.OrganizationID != "org-acme" {
		t.Fatalf("unexpected organization: %s", rotated.OrganizationID)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Fatalf("rotation must mint a new token")
	}

	ledger := store.Ledger(context.Background())
	old, err := ledger.FindByHash(context.Background(), KindRefresh, HashToken(login.RefreshToken))
	if err != nil {
		t.Fatalf("FindByHash(old): %v", err)
	}
	if !old.Revoked() {
		t.Fatalf("consumed token must be revoked")
	}
	if old.ReplacedByTokenHash != HashToken(rotated.RefreshToken) {
		t.Fatalf("rotation chain pointer missing")
	}

	successor, err := ledger.FindByHash(context.Background(), KindRefresh, HashToken(rotated.RefreshToken))
	if err != nil {
		t.Fatalf("FindByHash(successor): %v", err)
	}
	if !successor.Live(now) {
		t.Fatalf("successor must be live")
	}
}

func TestRotateReuseRevokesWholeChain(t *testing.T) {
	store := seedStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, WithClock(func() time.Time { return now }))

	login, err := svc.Login(context.Background(), "owner@acme.example", "owner-pass", RequestMetadata{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	first, err := svc.Rotate(context.Background(), login.RefreshToken, RequestMetadata{})
	if err != nil {
		t.Fatalf("first Rotate: %v", err)
	}
	second, err := svc.Rotate(context.Background(), first.RefreshToken, RequestMetadata{})
	if err != nil {
		t.Fatalf("second Rotate: %v", err)
	}

	// Replaying the original token is a compromise signal.
	_, err = svc.Rotate(context.Background(), login.RefreshToken, RequestMetadata{})
	if !errors.Is(err, ErrTokenReuse) {
		t.Fatalf("expected ErrTokenReuse, got %v", err)
	}
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("reuse must also read as an expired session")
	}

	// The whole chain is dead, including the latest live successor.
	ledger := store.Ledger(context.Background())
	latest, err := ledger.FindByHash(context.Background(), KindRefresh, HashToken(second.RefreshToken))
	if err != nil {
		t.Fatalf("FindByHash(latest): %v", err)
	}
	if !latest.Revoked() {
		t.Fatalf("chain revocation must reach the latest successor")
	}
	if _, err := svc.Rotate(context.Background(), second.RefreshToken, RequestMetadata{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("revoked successor must not rotate, got %v", err)
	}
}

func TestRotateExpiredToken(t *testing.T) {
	store := seedStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store,
		WithClock(func() time.Time { return now }),
		WithRefreshTTL(24*time.Hour),
	)

	login, err := svc.Login(context.Background(), "owner@acme.example", "owner-pass", RequestMetadata{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	now = now.Add(25 * time.Hour)
	if _, err := svc.Rotate(context.Background(), login.RefreshToken, RequestMetadata{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// Expiry is recorded lazily on the presented row.
	entry, err := store.Ledger(context.Background()).FindByHash(context.Background(), KindRefresh, HashToken(login.RefreshToken))
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if !entry.Revoked() {
		t.Fatalf("expired token should be revoked after presentation")
	}
}

func TestRotateUnknownAndMissingOrganization(t *testing.T) {
	store := seedStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, WithClock(func() time.Time { return now }))

	if _, err := svc.Rotate(context.Background(), "never-issued", RequestMetadata{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("unknown token: expected ErrSessionExpired, got %v", err)
	}
	if _, err := svc.Rotate(context.Background(), "", RequestMetadata{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("empty token: expected ErrSessionExpired, got %v", err)
	}

	// A ledger row pointing at a vanished organization is rejected and closed.
	orphan := "orphan-token"
	err := store.Ledger(context.Background()).Create(context.Background(), &LedgerEntry{
		ID:             "led-orphan",
		Kind:           KindRefresh,
		OrganizationID: "org-deleted",
		TokenHash:      HashToken(orphan),
		LoginEmail:     "ghost@example.com",
		ExpiresAt:      now.Add(time.Hour),
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Rotate(context.Background(), orphan, RequestMetadata{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("orphan token: expected ErrSessionExpired, got %v", err)
	}
	entry, err := store.Ledger(context.Background()).FindByHash(context.Background(), KindRefresh, HashToken(orphan))
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if !entry.Revoked() {
		t.Fatalf("orphan token should be revoked after rejection")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store)

	login, err := svc.Login(context.Background(), "owner@acme.example", "owner-pass", RequestMetadata{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Revoke(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := svc.Revoke(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if err := svc.Revoke(context.Background(), "never-issued"); err != nil {
		t.Fatalf("Revoke unknown: %v", err)
	}
	if err := svc.Revoke(context.Background(), ""); err != nil {
		t.Fatalf("Revoke empty: %v", err)
	}

	if _, err := svc.Rotate(context.Background(), login.RefreshToken, RequestMetadata{}); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("revoked token must not rotate, got %v", err)
	}
}

func TestRequestResetIssuesSingleLiveCode(t *testing.T) {
	store := seedStore(t)
	mailer := &captureMailer{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store,
		WithClock(func() time.Time { return now }),
		WithResetMailer(mailer),
	)

	if err := svc.RequestReset(context.Background(), "recruiter@acme.example", "en"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if mailer.sends != 1 || mailer.to != "recruiter@acme.example" {
		t.Fatalf("expected one mail to the member, got %d to %s", mailer.sends, mailer.to)
	}
	firstCode := mailer.code
	if len(firstCode) != 6 {
		t.Fatalf("expected 6-digit code, got %q", firstCode)
	}

	if err := svc.RequestReset(context.Background(), "recruiter@acme.example", "en"); err != nil {
		t.Fatalf("second RequestReset: %v", err)
	}

	ledger := store.Ledger(context.Background())
	old, err := ledger.FindByHash(context.Background(), KindOTP, HashToken(firstCode))
	if err != nil {
		t.Fatalf("FindByHash(first code): %v", err)
	}
	if !old.Revoked() {
		t.Fatalf("issuing a new code must revoke the previous one")
	}
	current, err := ledger.FindByHash(context.Background(), KindOTP, HashToken(mailer.code))
	if err != nil {
		t.Fatalf("FindByHash(current code): %v", err)
	}
	if !current.Live(now) {
		t.Fatalf("latest code must be live")
	}
	if current.OrganizationID != "org-acme" || current.LoginEmail != "recruiter@acme.example" {
		t.Fatalf("code row carries wrong identity: %+v", current)
	}
}

func TestRequestResetSilentOnUnknownAndInactive(t *testing.T) {
	store := seedStore(t)
	mailer := &captureMailer{}
	svc := newTestService(t, store, WithResetMailer(mailer))

	if err := svc.RequestReset(context.Background(), "nobody@example.com", "en"); err != nil {
		t.Fatalf("unknown email must be silent, got %v", err)
	}
	if err := svc.RequestReset(context.Background(), "former@acme.example", "en"); err != nil {
		t.Fatalf("inactive member must be silent, got %v", err)
	}
	if mailer.sends != 0 {
		t.Fatalf("no mail expected, got %d", mailer.sends)
	}
	if len(store.Entries()) != 0 {
		t.Fatalf("no ledger rows expected, got %d", len(store.Entries()))
	}
}

func TestRequestResetSurvivesMailFailure(t *testing.T) {
	store := seedStore(t)
	mailer := &captureMailer{err: errors.New("smtp down")}
	svc := newTestService(t, store, WithResetMailer(mailer))

	if err := svc.RequestReset(context.Background(), "owner@acme.example", "en"); err != nil {
		t.Fatalf("mail failure must not fail the request, got %v", err)
	}
	if len(store.Entries()) != 1 {
		t.Fatalf("code row must be durable despite mail failure")
	}
}

func TestConfirmResetHappyPathAndSingleUse(t *testing.T) {
	store := seedStore(t)
	mailer := &captureMailer{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store,
		WithClock(func() time.Time { return now }),
		WithResetMailer(mailer),
	)

	if err := svc.RequestReset(context.Background(), "owner@acme.example", "en"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	code := mailer.code

	if err := svc.ConfirmReset(context.Background(), "owner@acme.example", code, "brand-new-pass"); err != nil {
		t.Fatalf("ConfirmReset: %v", err)
	}
	if _, err := svc.Login(context.Background(), "owner@acme.example", "brand-new-pass", RequestMetadata{}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := svc.Login(context.Background(), "owner@acme.example", "owner-pass", RequestMetadata{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must be dead, got %v", err)
	}

	// Codes are single use.
	if err := svc.ConfirmReset(context.Background(), "owner@acme.example", code, "another-pass"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid on replay, got %v", err)
	}
}

func TestConfirmResetRejections(t *testing.T) {
	store := seedStore(t)
	mailer := &captureMailer{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store,
		WithClock(func() time.Time { return now }),
		WithResetMailer(mailer),
		WithOTPTTL(10*time.Minute),
	)

	if err := svc.ConfirmReset(context.Background(), "owner@acme.example", "123456", "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak password: expected ErrValidation, got %v", err)
	}
	if err := svc.ConfirmReset(context.Background(), "owner@acme.example", "000000", "long-enough"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("unknown code: expected ErrOTPInvalid, got %v", err)
	}

	if err := svc.RequestReset(context.Background(), "owner@acme.example", "en"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	code := mailer.code

	// Right code, wrong email.
	if err := svc.ConfirmReset(context.Background(), "recruiter@acme.example", code, "long-enough"); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("email mismatch: expected ErrOTPInvalid, got %v", err)
	}

	// Expired code is closed and reported as such; a fresh request works.
	now = now.Add(11 * time.Minute)
	if err := svc.ConfirmReset(context.Background(), "owner@acme.example", code, "long-enough"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if err := svc.RequestReset(context.Background(), "owner@acme.example", "en"); err != nil {
		t.Fatalf("RequestReset after expiry: %v", err)
	}
	if err := svc.ConfirmReset(context.Background(), "owner@acme.example", mailer.code, "long-enough"); err != nil {
		t.Fatalf("ConfirmReset with fresh code: %v", err)
	}
}

func TestConfirmResetInactiveMember(t *testing.T) {
	store := seedStore(t)
	mailer := &captureMailer{}
	svc := newTestService(t, store, WithResetMailer(mailer))

	if err := svc.RequestReset(context.Background(), "recruiter@acme.example", "en"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	// The member is deactivated between issue and confirm.
	store.PutMember(&OrganizationMember{
		ID:             "mem-1",
		OrganizationID: "org-acme",
		Email:          "recruiter@acme.example",
		PasswordHash:   mustHash(t, "member-pass"),
		IsActive:       false,
	})
	if err := svc.ConfirmReset(context.Background(), "recruiter@acme.example", mailer.code, "long-enough"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestResetDualWritesWhenMemberEmailIsPrimary(t *testing.T) {
	store := NewMemStore()
	approved := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store.PutOrganization(&Organization{
		ID:           "org-1",
		Name:         "Initech",
		Email:        "boss@initech.example",
		PasswordHash: mustHash(t, "org-pass"),
		ApprovedAt:   &approved,
	})
	// The owner also exists as a member under the same email.
	store.PutMember(&OrganizationMember{
		ID:             "mem-boss",
		OrganizationID: "org-1",
		Email:          "boss@initech.example",
		PasswordHash:   mustHash(t, "member-pass"),
		IsActive:       true,
	})

	mailer := &captureMailer{}
	svc := newTestService(t, store, WithResetMailer(mailer))

	if err := svc.RequestReset(context.Background(), "boss@initech.example", "en"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if err := svc.ConfirmReset(context.Background(), "boss@initech.example", mailer.code, "fresh-password"); err != nil {
		t.Fatalf("ConfirmReset: %v", err)
	}

	member, err := store.Members(context.Background()).FindByEmail(context.Background(), "boss@initech.example")
	if err != nil {
		t.Fatalf("FindByEmail(member): %v", err)
	}
	if VerifyPassword(member.PasswordHash, "fresh-password") != nil {
		t.Fatalf("member hash not updated")
	}
	org, err := store.Organizations(context.Background()).Find(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Find(org): %v", err)
	}
	if VerifyPassword(org.PasswordHash, "fresh-password") != nil {
		t.Fatalf("organization hash must be cross-written for the primary email")
	}
}

func TestChangePassword(t *testing.T) {
	store := seedStore(t)
	svc := newTestService(t, store)

	if err := svc.ChangePassword(context.Background(), "recruiter@acme.example", "wrong", "new-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), "recruiter@acme.example", "", "new-password"); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing current: expected ErrValidation, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), "recruiter@acme.example", "member-pass", "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak new password: expected ErrValidation, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), "former@acme.example", "former-pass", "new-password"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("inactive member: expected ErrAccountDisabled, got %v", err)
	}

	if err := svc.ChangePassword(context.Background(), "recruiter@acme.example", "member-pass", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(context.Background(), "recruiter@acme.example", "new-password", RequestMetadata{}); err != nil {
		t.Fatalf("login with changed password: %v", err)
	}

	// Member email differs from the organization's primary: the owner's
	// credential is untouched.
	if _, err := svc.Login(context.Background(), "owner@acme.example", "owner-pass", RequestMetadata{}); err != nil {
		t.Fatalf("owner credential must be untouched: %v", err)
	}
}

func TestSetInitialPassword(t *testing.T) {
	store := NewMemStore()
	expires := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store.PutOrganization(&Organization{
		ID:                 "org-new",
		Name:               "Fresh Co",
		Email:              "hello@fresh.example",
		SetPasswordToken:   "onboarding-token",
		SetPasswordExpires: &expires,
	})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, WithClock(func() time.Time { return now }))

	if err := svc.SetInitialPassword(context.Background(), "", "long-enough"); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing token: expected ErrValidation, got %v", err)
	}
	if err := svc.SetInitialPassword(context.Background(), "wrong-token", "long-enough"); !errors.Is(err, ErrSetTokenInvalid) {
		t.Fatalf("unknown token: expected ErrSetTokenInvalid, got %v", err)
	}

	if err := svc.SetInitialPassword(context.Background(), "onboarding-token", "first-password"); err != nil {
		t.Fatalf("SetInitialPassword: %v", err)
	}
	if _, err := svc.Login(context.Background(), "hello@fresh.example", "first-password", RequestMetadata{}); err != nil {
		t.Fatalf("login after onboarding: %v", err)
	}

	// The token is single use.
	if err := svc.SetInitialPassword(context.Background(), "onboarding-token", "second-password"); !errors.Is(err, ErrSetTokenInvalid) {
		t.Fatalf("expected ErrSetTokenInvalid on reuse, got %v", err)
	}
}

func TestSetInitialPasswordExpiredToken(t *testing.T) {
	store := NewMemStore()
	expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.PutOrganization(&Organization{
		ID:                 "org-late",
		Name:               "Late Co",
		Email:              "late@example.com",
		SetPasswordToken:   "stale-token",
		SetPasswordExpires: &expires,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, WithClock(func() time.Time { return now }))

	if err := svc.SetInitialPassword(context.Background(), "stale-token", "long-enough"); !errors.Is(err, ErrSetTokenInvalid) {
		t.Fatalf("expected ErrSetTokenInvalid for expired token, got %v", err)
	}
}

func TestGenerateResetCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateResetCode()
		if err != nil {
			t.Fatalf("generateResetCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}
