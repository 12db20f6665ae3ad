package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(testSecret, "benchlink", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return s
}

func TestIssueAndParse(t *testing.T) {
	s := newTestSigner(t)

	token, issued, err := s.Issue("autosampler-01", RoleOperator)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" || issued.ID == "" {
		t.Fatal("Issue() returned empty token or jti")
	}

	claims, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Subject != "autosampler-01" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want operator", claims.Role)
	}
	if claims.Issuer != "benchlink" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
	if claims.ID != issued.ID {
		t.Errorf("jti = %q, want %q", claims.ID, issued.ID)
	}

	expiry := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if expiry != 15*time.Minute {
		t.Errorf("lifetime = %v, want 15m", expiry)
	}
}

func TestNewSigner(t *testing.T) {
	if _, err := NewSigner("short", "", time.Minute); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("NewSigner(short) error = %v, want ErrWeakSecret", err)
	}

	s, err := NewSigner(testSecret, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", s.TTL(), DefaultTTL)
	}
}

func TestIssue_Rejects(t *testing.T) {
	s := newTestSigner(t)

	if _, _, err := s.Issue("ok", Role("root")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("unknown role error = %v", err)
	}
	if _, _, err := s.Issue("has space", RoleViewer); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("bad subject error = %v", err)
	}
}

func TestParse_Failures(t *testing.T) {
	s := newTestSigner(t)
	token, _, err := s.Issue("lab-pc", RoleViewer)
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewSigner(strings.Repeat("x", MinSecretLength), "benchlink", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	otherIssuer, err := NewSigner(testSecret, "someone-else", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		signer *Signer
		token  string
	}{
		{"garbage", s, "not-a-valid-jwt"},
		{"empty", s, ""},
		{"malformed", s, "abc.def"},
		{"wrong secret", other, token},
		{"wrong issuer", otherIssuer, token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.signer.Parse(tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Parse() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParse_Expired(t *testing.T) {
	s := newTestSigner(t)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := s.Issue("lab-pc", RoleViewer)
	if err != nil {
		t.Fatal(err)
	}

	s.now = time.Now
	if _, err := s.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Parse() error = %v, want ErrTokenExpired", err)
	}
}

func TestParse_RejectsUnknownRole(t *testing.T) {
	s := newTestSigner(t)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "benchlink",
			Subject:   "lab-pc",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: "owner",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Parse(token); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Parse() error = %v, want ErrInvalidRole", err)
	}
}

func TestClaimsContext(t *testing.T) {
	if _, ok := ClaimsFromContext(context.Background()); ok {
		t.Error("empty context reported claims")
	}

	c := &Claims{Role: RoleAdmin}
	got, ok := ClaimsFromContext(WithClaims(context.Background(), c))
	if !ok || got != c {
		t.Errorf("ClaimsFromContext() = %v, %v", got, ok)
	}
}
