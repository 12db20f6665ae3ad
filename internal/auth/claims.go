package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest HS256 secret a Signer accepts.
const MinSecretLength = 32

// DefaultTTL applies when a Signer is created with a non-positive TTL.
const DefaultTTL = 60 * time.Minute

// Claims extends JWT standard claims with the caller's role.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Signer issues and verifies HS256 access tokens.
//
// Tokens are stateless: there is no revocation list, so keep TTLs short.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer.
//
// Parameters:
//   - secret: HS256 key, at least MinSecretLength bytes
//   - issuer: value for the iss claim; verified on parse when non-empty
//   - ttl: access token lifetime (DefaultTTL when <= 0)
func NewSigner(secret, issuer string, ttl time.Duration) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// TTL returns the access token lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue signs an access token for subject with role.
func (s *Signer) Issue(subject string, role Role) (string, *Claims, error) {
	if !IsValidSubject(subject) {
		return "", nil, fmt.Errorf("%w: subject %q", ErrTokenInvalid, subject)
	}
	if !IsValidRole(role) {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing access token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates and parses an access token. It checks the signature,
// expiry, issuer and role.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !IsValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: %w %q", ErrTokenInvalid, ErrInvalidRole, claims.Role)
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns a context carrying the verified claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by WithClaims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
