package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOps    Role = "ops"
	RoleClient Role = "client"
)

// ParseRole accepts the wire names used by the login form.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleOps:
		return RoleOps, nil
	case RoleClient:
		return RoleClient, nil
	default:
		return "", fmt.Errorf("unknown user type %q", s)
	}
}

func (r Role) Valid() bool {
	return r == RoleOps || r == RoleClient
}

type User struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Email             string    `json:"email" db:"email"`
	PasswordHash      string    `json:"-" db:"password_hash"`
	Role              Role      `json:"user_type" db:"role"`
	Verified          bool      `json:"is_verified" db:"is_verified"`
	VerificationToken *string   `json:"-" db:"verification_token"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Identity is what a validated session asserts about the caller.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// NormalizeEmail lower-cases and trims an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
