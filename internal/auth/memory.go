package auth

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store used for local development without a
// database and as the fixture for service-level tests.
type MemStore struct {
	mu      sync.Mutex
	orgs    map[string]*Organization       // by id
	members map[string]*OrganizationMember // by id
	ledger  map[string]*LedgerEntry        // by kind+token hash
}

func NewMemStore() *MemStore {
	return &MemStore{
		orgs:    make(map[string]*Organization),
		members: make(map[string]*OrganizationMember),
		ledger:  make(map[string]*LedgerEntry),
	}
}

func (s *MemStore) Organizations(context.Context) OrganizationStore { return (*memOrgStore)(s) }
func (s *MemStore) Members(context.Context) MemberStore             { return (*memMemberStore)(s) }
func (s *MemStore) Ledger(context.Context) LedgerStore              { return (*memLedgerStore)(s) }

// PutOrganization seeds or replaces an organization record.
func (s *MemStore) PutOrganization(org *Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *org
	s.orgs[org.ID] = &cp
}

// PutMember seeds or replaces a member record.
func (s *MemStore) PutMember(m *OrganizationMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.members[m.ID] = &cp
}

// Entries returns a snapshot of all ledger rows, oldest first by id.
func (s *MemStore) Entries() []*LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*LedgerEntry, 0, len(s.ledger))
	for _, e := range s.ledger {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func ledgerKey(kind LedgerKind, hash string) string { return string(kind) + ":" + hash }

type memOrgStore MemStore

func (s *memOrgStore) Find(_ context.Context, id string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *memOrgStore) FindByEmail(_ context.Context, email string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = NormalizeEmail(email)
	for _, org := range s.orgs {
		if NormalizeEmail(org.Email) == email {
			cp := *org
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memOrgStore) FindBySetPasswordToken(_ context.Context, token string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, org := range s.orgs {
		if org.SetPasswordToken != "" && org.SetPasswordToken == token {
			cp := *org
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memOrgStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return ErrNotFound
	}
	org.PasswordHash = passwordHash
	org.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memOrgStore) CompleteOnboarding(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return ErrNotFound
	}
	org.PasswordHash = passwordHash
	org.SetPasswordToken = ""
	org.SetPasswordExpires = nil
	org.UpdatedAt = time.Now().UTC()
	return nil
}

type memMemberStore MemStore

func (s *memMemberStore) FindByEmail(_ context.Context, email string) (*OrganizationMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = NormalizeEmail(email)
	for _, m := range s.members {
		if NormalizeEmail(m.Email) == email {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memMemberStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return ErrNotFound
	}
	m.PasswordHash = passwordHash
	m.UpdatedAt = time.Now().UTC()
	return nil
}

type memLedgerStore MemStore

func (s *memLedgerStore) Create(_ context.Context, e *LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.ledger[ledgerKey(e.Kind, e.TokenHash)] = &cp
	return nil
}

func (s *memLedgerStore) FindByHash(_ context.Context, kind LedgerKind, tokenHash string) (*LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ledger[ledgerKey(kind, tokenHash)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memLedgerStore) Revoke(_ context.Context, kind LedgerKind, tokenHash string, at time.Time, replacedByHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ledger[ledgerKey(kind, tokenHash)]
	if !ok || e.RevokedAt != nil {
		return false, nil
	}
	ts := at
	e.RevokedAt = &ts
	if replacedByHash != "" {
		e.ReplacedByTokenHash = replacedByHash
	}
	return true, nil
}

func (s *memLedgerStore) RevokeLiveByEmail(_ context.Context, kind LedgerKind, loginEmail string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.ledger {
		if e.Kind == kind && e.LoginEmail == loginEmail && e.RevokedAt == nil {
			ts := at
			e.RevokedAt = &ts
		}
	}
	return nil
}
