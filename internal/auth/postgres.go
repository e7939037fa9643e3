package auth

import (
	"context"
	"database/sql"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Organizations(context.Context) OrganizationStore { return &orgStore{db: s.db} }
func (s *PGStore) Members(context.Context) MemberStore             { return &memberStore{db: s.db} }
func (s *PGStore) Ledger(context.Context) LedgerStore              { return &ledgerStore{db: s.db} }

// Organization store -------------------------------------------------------

type orgStore struct{ db *sql.DB }

const orgColumns = `id, name, email, coalesce(password_hash, ''), approved_at, rejected_at,
	coalesce(rejection_reason, ''), coalesce(set_password_token, ''), set_password_expires,
	created_at, updated_at`

func scanOrganization(row *sql.Row) (*Organization, error) {
	var org Organization
	err := row.Scan(
		&org.ID, &org.Name, &org.Email, &org.PasswordHash, &org.ApprovedAt, &org.RejectedAt,
		&org.RejectionReason, &org.SetPasswordToken, &org.SetPasswordExpires,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *orgStore) Find(ctx context.Context, id string) (*Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where id=$1`, id))
}

func (s *orgStore) FindByEmail(ctx context.Context, email string) (*Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where lower(email)=$1`, NormalizeEmail(email)))
}

func (s *orgStore) FindBySetPasswordToken(ctx context.Context, token string) (*Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx,
		`select `+orgColumns+` from organizations where set_password_token=$1`, token))
}

func (s *orgStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update organizations set password_hash=$2, updated_at=now() where id=$1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *orgStore) CompleteOnboarding(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update organizations
		 set password_hash=$2, set_password_token=null, set_password_expires=null, updated_at=now()
		 where id=$1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Member store --------------------------------------------------------------

type memberStore struct{ db *sql.DB }

func (s *memberStore) FindByEmail(ctx context.Context, email string) (*OrganizationMember, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, organization_id, email, coalesce(password_hash, ''), is_active, created_at, updated_at
		 from organization_members where lower(email)=$1`, NormalizeEmail(email))
	var m OrganizationMember
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.Email, &m.PasswordHash, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *memberStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update organization_members set password_hash=$2, updated_at=now() where id=$1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Ledger store --------------------------------------------------------------

type ledgerStore struct{ db *sql.DB }

func (s *ledgerStore) Create(ctx context.Context, e *LedgerEntry) error {
	_, err := s.db.ExecContext(ctx,
		`insert into company_token_ledger
		 (id, kind, organization_id, token_hash, login_email, expires_at, created_by_ip, user_agent, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, string(e.Kind), e.OrganizationID, e.TokenHash, e.LoginEmail,
		e.ExpiresAt, e.CreatedByIP, e.UserAgent, e.CreatedAt,
	)
	return err
}

func (s *ledgerStore) FindByHash(ctx context.Context, kind LedgerKind, tokenHash string) (*LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, kind, organization_id, token_hash, login_email, expires_at,
		        coalesce(created_by_ip, ''), coalesce(user_agent, ''), revoked_at,
		        coalesce(replaced_by_token_hash, ''), created_at
		 from company_token_ledger where kind=$1 and token_hash=$2`,
		string(kind), tokenHash)
	var e LedgerEntry
	var k string
	err := row.Scan(&e.ID, &k, &e.OrganizationID, &e.TokenHash, &e.LoginEmail, &e.ExpiresAt,
		&e.CreatedByIP, &e.UserAgent, &e.RevokedAt, &e.ReplacedByTokenHash, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Kind = LedgerKind(k)
	return &e, nil
}

// Revoke is the conditional update that makes rotation race-free: the
// `revoked_at is null` guard plus the affected-row count guarantees only one
// of two concurrent consumers wins.
func (s *ledgerStore) Revoke(ctx context.Context, kind LedgerKind, tokenHash string, at time.Time, replacedByHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update company_token_ledger
		 set revoked_at=$3, replaced_by_token_hash=nullif($4, '')
		 where kind=$1 and token_hash=$2 and revoked_at is null`,
		string(kind), tokenHash, at, replacedByHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ledgerStore) RevokeLiveByEmail(ctx context.Context, kind LedgerKind, loginEmail string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update company_token_ledger
		 set revoked_at=$3
		 where kind=$1 and login_email=$2 and revoked_at is null`,
		string(kind), loginEmail, at)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
