package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"jobgate.org/internal/ids"
	"jobgate.org/internal/obs"
)

const (
	defaultRefreshTTL  = 14 * 24 * time.Hour
	defaultOTPTTL      = 15 * time.Minute
	defaultMailTimeout = 10 * time.Second

	// maxChainWalk bounds rotation-chain traversal on reuse detection.
	maxChainWalk = 100
)

// ResetMailer delivers a one-time reset code to a login email. Implemented
// by internal/mail; the service never touches transport details.
type ResetMailer interface {
	SendResetCode(ctx context.Context, to, locale, code string, expiresIn time.Duration) error
}

// Service implements the company session lifecycle: login, refresh token
// rotation, logout, the OTP password reset flow and password changes.
type Service struct {
	store  Store
	tokens *TokenIssuer
	mailer ResetMailer

	refreshTTL  time.Duration
	otpTTL      time.Duration
	mailTimeout time.Duration
	now         func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithOTPTTL configures reset code lifetime.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

// WithResetMailer wires the outbound reset-code sender.
func WithResetMailer(m ResetMailer) ServiceOption {
	return func(s *Service) { s.mailer = m }
}

// WithMailTimeout bounds how long a reset request waits on email dispatch.
func WithMailTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.mailTimeout = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the session service.
func NewService(store Store, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	svc := &Service{
		store:       store,
		tokens:      tokens,
		refreshTTL:  defaultRefreshTTL,
		otpTTL:      defaultOTPTTL,
		mailTimeout: defaultMailTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Tokens exposes the issuer for the transport layer's authn middleware.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// RefreshTTL returns the refresh token lifetime, which also drives the
// refresh cookie MaxAge.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// HashToken is the one-way digest used to store refresh tokens and reset
// codes at rest. Never reversed, only compared.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LoginResult carries everything the transport needs after authentication.
type LoginResult struct {
	Organization     *Organization
	LoginEmail       string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RotateResult carries reissued credentials after a successful rotation.
type RotateResult struct {
	OrganizationID   string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Login authenticates the email against the identity union and issues a
// fresh access token plus a ledger-backed refresh token.
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMetadata) (*LoginResult, error) {
	identity, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	accessToken, accessExp, err := s.tokens.Issue(identity.Organization.ID, identity.LoginEmail)
	if err != nil {
		return nil, err
	}
	rawRefresh, entry, err := s.issueRefresh(ctx, identity.Organization.ID, identity.LoginEmail, meta)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Organization:     identity.Organization,
		LoginEmail:       identity.LoginEmail,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: entry.ExpiresAt,
	}, nil
}

// Rotate exchanges a live refresh token for a new token pair. The consumed
// row is revoked with a pointer to its successor, forming a traceable chain.
// Presenting an already-rotated token revokes every live successor in the
// chain and rejects: a second redemption is treated as a compromise signal.
func (s *Service) Rotate(ctx context.Context, rawToken string, meta RequestMetadata) (*RotateResult, error) {
	if rawToken == "" {
		return nil, ErrSessionExpired
	}
	ledger := s.store.Ledger(ctx)

	entry, err := ledger.FindByHash(ctx, KindRefresh, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	now := s.now().UTC()
	if entry.Revoked() {
		if err := s.revokeSuccessors(ctx, entry, now); err != nil {
			return nil, err
		}
		obs.CountTokenReuse()
		return nil, ErrTokenReuse
	}
	if entry.Expired(now) {
		// Lazy cleanup: mark the row so later reads see it as consumed.
		if _, err := ledger.Revoke(ctx, KindRefresh, entry.TokenHash, now, ""); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	// The owning organization may have been deleted since issuance.
	if _, err := s.store.Organizations(ctx).Find(ctx, entry.OrganizationID); err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = ledger.Revoke(ctx, KindRefresh, entry.TokenHash, now, "")
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	// Successor is written before the consumed row is revoked, so a crash
	// between the two never strands the client without a live token.
	rawSuccessor, successor, err := s.issueRefresh(ctx, entry.OrganizationID, entry.LoginEmail, meta)
	if err != nil {
		return nil, err
	}

	ok, err := ledger.Revoke(ctx, KindRefresh, entry.TokenHash, now, successor.TokenHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent rotation consumed the row first. Withdraw the
		// successor minted above; only one caller wins.
		_, _ = ledger.Revoke(ctx, KindRefresh, successor.TokenHash, now, "")
		return nil, ErrSessionExpired
	}

	accessToken, accessExp, err := s.tokens.Issue(entry.OrganizationID, entry.LoginEmail)
	if err != nil {
		return nil, err
	}

	return &RotateResult{
		OrganizationID:   entry.OrganizationID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rawSuccessor,
		RefreshExpiresAt: successor.ExpiresAt,
	}, nil
}

// Revoke invalidates a refresh token. Idempotent: revoking an already
// revoked or unknown token is not an error. Used by logout.
func (s *Service) Revoke(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	_, err := s.store.Ledger(ctx).Revoke(ctx, KindRefresh, HashToken(rawToken), s.now().UTC(), "")
	return err
}

// Organization loads the company account for the session endpoint.
func (s *Service) Organization(ctx context.Context, id string) (*Organization, error) {
	return s.store.Organizations(ctx).Find(ctx, id)
}

// RequestReset starts the OTP reset flow. Unknown emails and inactive
// members are silently ignored so the caller-visible outcome is identical
// for every input. Email dispatch failure is logged but does not fail the
// request: the code row is already durable and re-requesting is cheap.
func (s *Service) RequestReset(ctx context.Context, email, locale string) error {
	identity, err := s.ResolveIdentity(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if identity.IsMember() && !identity.Member.IsActive {
		return nil
	}

	now := s.now().UTC()
	ledger := s.store.Ledger(ctx)

	// At most one live code per login email.
	if err := ledger.RevokeLiveByEmail(ctx, KindOTP, identity.LoginEmail, now); err != nil {
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		return err
	}
	entry := &LedgerEntry{
		ID:             ids.New(),
		Kind:           KindOTP,
		OrganizationID: identity.Organization.ID,
		TokenHash:      HashToken(code),
		LoginEmail:     identity.LoginEmail,
		ExpiresAt:      now.Add(s.otpTTL),
		CreatedAt:      now,
	}
	if err := ledger.Create(ctx, entry); err != nil {
		return err
	}
	obs.CountResetIssued()

	if s.mailer != nil {
		mctx, cancel := context.WithTimeout(ctx, s.mailTimeout)
		defer cancel()
		if err := s.mailer.SendResetCode(mctx, identity.LoginEmail, locale, code, s.otpTTL); err != nil {
			obs.LogEntry(map[string]any{
				"ts":    now.Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "reset code dispatch failed",
				"email": identity.LoginEmail,
				"error": err.Error(),
			})
		}
	}
	return nil
}

// ConfirmReset redeems a live code and updates the owning credential record.
// Codes are single-use; expiry is enforced against the stored timestamp.
func (s *Service) ConfirmReset(ctx context.Context, email, code, newPassword string) error {
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}
	email = NormalizeEmail(email)
	if email == "" || code == "" {
		return ErrOTPInvalid
	}

	ledger := s.store.Ledger(ctx)
	entry, err := ledger.FindByHash(ctx, KindOTP, HashToken(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrOTPInvalid
		}
		return err
	}
	if entry.LoginEmail != email || entry.Revoked() {
		return ErrOTPInvalid
	}
	now := s.now().UTC()
	if entry.Expired(now) {
		_, _ = ledger.Revoke(ctx, KindOTP, entry.TokenHash, now, "")
		return ErrOTPExpired
	}

	identity, err := s.ResolveIdentity(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrOTPInvalid
		}
		return err
	}
	if identity.IsMember() && !identity.Member.IsActive {
		return ErrAccountDisabled
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.writePassword(ctx, identity, hash); err != nil {
		return err
	}

	ok, err := ledger.Revoke(ctx, KindOTP, entry.TokenHash, now, "")
	if err != nil {
		return err
	}
	if !ok {
		return ErrOTPInvalid
	}
	return nil
}

// ChangePassword verifies the current password against the record that
// resolution picks for the authenticated login email and stores the new
// hash on that record only. The organization record is cross-written solely
// when the login email is the organization's own primary email.
func (s *Service) ChangePassword(ctx context.Context, loginEmail, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return fmt.Errorf("%w: current password is required", ErrValidation)
	}
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	identity, err := s.ResolveIdentity(ctx, loginEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if identity.IsMember() && !identity.Member.IsActive {
		return ErrAccountDisabled
	}
	if identity.PasswordHash() == "" {
		return ErrInvalidCredentials
	}
	if err := VerifyPassword(identity.PasswordHash(), currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.writePassword(ctx, identity, hash)
}

// SetInitialPassword completes onboarding: a one-time emailed token lets the
// organization set its first password. The token is cleared on use.
func (s *Service) SetInitialPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrValidation)
	}
	if err := ValidateNewPassword(password); err != nil {
		return err
	}

	org, err := s.store.Organizations(ctx).FindBySetPasswordToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrSetTokenInvalid
		}
		return err
	}
	if org.SetPasswordExpires == nil || s.now().UTC().After(*org.SetPasswordExpires) {
		return ErrSetTokenInvalid
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.Organizations(ctx).CompleteOnboarding(ctx, org.ID, hash)
}

// writePassword updates the credential record that resolved. When a member
// resolved but its email is also the organization's primary email, the
// organization record is cross-written too: it is the fallback identity for
// that email and leaving it stale would fork the credential.
func (s *Service) writePassword(ctx context.Context, identity ResolvedIdentity, hash string) error {
	if identity.IsMember() {
		if err := s.store.Members(ctx).UpdatePassword(ctx, identity.Member.ID, hash); err != nil {
			return err
		}
		if identity.LoginEmail == NormalizeEmail(identity.Organization.Email) {
			return s.store.Organizations(ctx).UpdatePassword(ctx, identity.Organization.ID, hash)
		}
		return nil
	}
	return s.store.Organizations(ctx).UpdatePassword(ctx, identity.Organization.ID, hash)
}

func (s *Service) issueRefresh(ctx context.Context, organizationID, loginEmail string, meta RequestMetadata) (string, *LedgerEntry, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	now := s.now().UTC()
	entry := &LedgerEntry{
		ID:             ids.New(),
		Kind:           KindRefresh,
		OrganizationID: organizationID,
		TokenHash:      HashToken(raw),
		LoginEmail:     loginEmail,
		ExpiresAt:      now.Add(s.refreshTTL),
		CreatedByIP:    meta.IP,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
	}
	if err := s.store.Ledger(ctx).Create(ctx, entry); err != nil {
		return "", nil, err
	}
	return raw, entry, nil
}

// revokeSuccessors walks the rotation chain forward from a reused token and
// revokes every descendant, live or not, forcing re-authentication.
func (s *Service) revokeSuccessors(ctx context.Context, entry *LedgerEntry, now time.Time) error {
	ledger := s.store.Ledger(ctx)
	next := entry.ReplacedByTokenHash
	for i := 0; next != "" && i < maxChainWalk; i++ {
		successor, err := ledger.FindByHash(ctx, KindRefresh, next)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if _, err := ledger.Revoke(ctx, KindRefresh, successor.TokenHash, now, ""); err != nil {
			return err
		}
		next = successor.ReplacedByTokenHash
	}
	return nil
}

// newOpaqueToken returns a 256-bit random value, base64url encoded. The raw
// value goes to the client; only its hash is persisted.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// generateResetCode returns a uniformly random 6-digit code.
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
