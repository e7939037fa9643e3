package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleCompany is the only role this subsystem mints tokens for.
const RoleCompany = "company"

// DefaultAccessTTL is the access token lifetime unless configured otherwise.
const DefaultAccessTTL = 15 * time.Minute

// Claims are the JWT claims carried by a company access token.
type Claims struct {
	OrganizationID string `json:"org_id"`
	Role           string `json:"role"`
	Email          string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies short-lived signed access tokens. It is
// stateless: nothing is persisted and tokens cannot be revoked early.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs an issuer signing with HS256.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the configured access token lifetime.
func (ti *TokenIssuer) TTL() time.Duration { return ti.ttl }

// Issue signs a token embedding the organization id, the company role and
// the login email that resolved at authentication time.
func (ti *TokenIssuer) Issue(organizationID, email string) (string, time.Time, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return "", time.Time{}, errors.New("auth: organization id is required")
	}

	now := ti.now().UTC()
	expiresAt := now.Add(ti.ttl)
	claims := Claims{
		OrganizationID: organizationID,
		Role:           RoleCompany,
		Email:          NormalizeEmail(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   organizationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature, method, issuer and expiry.
func (ti *TokenIssuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return ti.now() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if ti.issuer != "" && claims.Issuer != ti.issuer {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleCompany || strings.TrimSpace(claims.OrganizationID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
