package auth

import (
	"errors"
	"regexp"
)

// subjectPattern defines the valid format for token subjects:
// alphanumeric, dots, hyphens, underscores, @, 1-64 characters.
var subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]{1,64}$`)

// IsValidSubject checks if a token subject meets format requirements.
func IsValidSubject(subject string) bool {
	return subjectPattern.MatchString(subject)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read device descriptors, positions and history.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally move valves.
	RoleOperator Role = "operator"

	// RoleAdmin has every permission, including system endpoints.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid roles.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenMissing = errors.New("missing bearer token")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidRole  = errors.New("invalid role")
	ErrWeakSecret   = errors.New("signing secret too short")
)
