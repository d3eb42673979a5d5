package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleSnapshot is the role context frozen into an access token at issue time.
// Downstream checks read the snapshot; request-time resolution (Resolver)
// re-reads the store for the authoritative answer.
type RoleSnapshot struct {
	IsAdmin      bool         `json:"adm,omitempty"`
	IsAuthor     bool         `json:"aut,omitempty"`
	AuthorStatus AuthorStatus `json:"ast,omitempty"`
}

// AuthClaims is the validated content of an access token.
type AuthClaims interface {
	AccountID() string
	AccountUUID() (uuid.UUID, error)
	Snapshot() RoleSnapshot
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID   string       `json:"uid,omitempty"`
	Roles RoleSnapshot `json:"roles,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// AccountID returns the owning account id
func (c *JWTClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// AccountUUID parses the account id
func (c *JWTClaims) AccountUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AccountID())
}

// Snapshot returns the role snapshot embedded at issue time
func (c *JWTClaims) Snapshot() RoleSnapshot {
	return c.Roles
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issue time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
