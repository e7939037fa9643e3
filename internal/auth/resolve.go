package auth

import (
	"context"
	"errors"
)

// ResolveIdentity performs the two-step identity lookup: a member login wins
// when its email matches; otherwise the email is tried as the organization's
// own. The caller receives ErrNotFound when neither path reaches an
// organization. Password checking is the caller's concern — the reset flow
// resolves identities without one.
func (s *Service) ResolveIdentity(ctx context.Context, email string) (ResolvedIdentity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return ResolvedIdentity{}, ErrNotFound
	}

	member, err := s.store.Members(ctx).FindByEmail(ctx, email)
	switch {
	case err == nil:
		org, err := s.store.Organizations(ctx).Find(ctx, member.OrganizationID)
		if err != nil {
			// A member row pointing at a deleted organization is not a
			// distinct externally visible state.
			return ResolvedIdentity{}, ErrNotFound
		}
		return ResolvedIdentity{Organization: org, Member: member, LoginEmail: email}, nil
	case errors.Is(err, ErrNotFound):
		org, err := s.store.Organizations(ctx).FindByEmail(ctx, email)
		if err != nil {
			return ResolvedIdentity{}, err
		}
		return ResolvedIdentity{Organization: org, LoginEmail: email}, nil
	default:
		return ResolvedIdentity{}, err
	}
}

// authenticate resolves the identity and verifies the password against the
// record that resolved. Unknown email, wrong password, unset password and
// inactive member all collapse into ErrInvalidCredentials.
func (s *Service) authenticate(ctx context.Context, email, password string) (ResolvedIdentity, error) {
	if password == "" {
		return ResolvedIdentity{}, ErrInvalidCredentials
	}
	identity, err := s.ResolveIdentity(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ResolvedIdentity{}, ErrInvalidCredentials
		}
		return ResolvedIdentity{}, err
	}
	if identity.IsMember() && !identity.Member.IsActive {
		return ResolvedIdentity{}, ErrInvalidCredentials
	}
	if identity.PasswordHash() == "" {
		return ResolvedIdentity{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(identity.PasswordHash(), password); err != nil {
		return ResolvedIdentity{}, ErrInvalidCredentials
	}
	return identity, nil
}
