package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthProvider tags which system vouched for the account credentials.
type AuthProvider = string

const (
	// ProviderLocal is a password-backed account
	ProviderLocal AuthProvider = "local"
	// ProviderExternal is an account created through a federated identity
	ProviderExternal AuthProvider = "external"
)

// Account is the credential-bearing identity record
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	FirstName      string         `bun:"first_name" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name" json:"last_name,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	EmailVerified  bool           `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	Provider       AuthProvider   `bun:"provider,notnull" json:"provider,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (a *Account) AddMetadata(key string, val any) *Account {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = val
	return a
}

// RefreshToken is the server side record backing an opaque refresh credential.
// Only the SHA-256 hash of the credential is stored. A record with either
// RevokedAt or ReplacedBy set is dead; presenting its credential again is
// treated as reuse and revokes every record sharing FamilyID.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	FamilyID      uuid.UUID  `bun:"family_id,notnull,type:uuid" json:"family_id,omitempty"`
	IssuedAt      time.Time  `bun:"issued_at,notnull" json:"issued_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	ReplacedBy    *uuid.UUID `bun:"replaced_by,nullzero,type:uuid" json:"replaced_by,omitempty"`
}

// IsDead reports whether the record was revoked or already rotated.
func (t *RefreshToken) IsDead() bool {
	return t.RevokedAt != nil || t.ReplacedBy != nil
}

// IsExpired reports whether the record is past its expiry at the given time.
func (t *RefreshToken) IsExpired(at time.Time) bool {
	return at.After(t.ExpiresAt)
}

// ActionTokenKind discriminates single use token flows
type ActionTokenKind = string

const (
	// ActionTokenEmailVerify proves ownership of the signup email
	ActionTokenEmailVerify ActionTokenKind = "EMAIL_VERIFY"
	// ActionTokenPasswordReset authorizes a one shot password change
	ActionTokenPasswordReset ActionTokenKind = "PASSWORD_RESET"
	// ActionTokenAdminInvite carries an administrator invitation
	ActionTokenAdminInvite ActionTokenKind = "ADMIN_INVITE"
)

// ActionToken is a single use, time boxed credential. The raw value is never
// persisted, only its hash. At most one unconsumed, unexpired token exists per
// (account, kind) pair: issuing a new one supersedes the previous token.
type ActionToken struct {
	bun.BaseModel `bun:"table:action_tokens,alias:act"`
	ID            uuid.UUID       `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TokenHash     string          `bun:"token_hash,notnull,unique" json:"-"`
	AccountID     uuid.UUID       `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Kind          ActionTokenKind `bun:"kind,notnull" json:"kind,omitempty"`
	ExpiresAt     time.Time       `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt    *time.Time      `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	Metadata      map[string]any  `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt     *time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsConsumed reports whether the one way consumed transition already happened.
func (t *ActionToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// IsExpired reports whether the token is past its expiry at the given time.
func (t *ActionToken) IsExpired(at time.Time) bool {
	return at.After(t.ExpiresAt)
}

// AdminGrant marks an account as an administrator. GrantedBy is nil only for
// the seed admin created at bootstrap.
type AdminGrant struct {
	bun.BaseModel `bun:"table:admin_grants,alias:adg"`
	AccountID     uuid.UUID  `bun:"account_id,pk,nullzero,type:uuid" json:"account_id,omitempty"`
	GrantedBy     *uuid.UUID `bun:"granted_by,nullzero,type:uuid" json:"granted_by,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AuthorStatus is the author application lifecycle state
type AuthorStatus = string

const (
	// AuthorStatusPending is a submitted, unreviewed application
	AuthorStatusPending AuthorStatus = "PENDING"
	// AuthorStatusApproved allows publishing
	AuthorStatusApproved AuthorStatus = "APPROVED"
	// AuthorStatusRejected is a denied application
	AuthorStatusRejected AuthorStatus = "REJECTED"
	// AuthorStatusSuspended pauses a previously approved author
	AuthorStatusSuspended AuthorStatus = "SUSPENDED"
)

// AuthorProfile is the author application record. Status only changes through
// the author state machine.
type AuthorProfile struct {
	bun.BaseModel `bun:"table:author_profiles,alias:aup"`
	ID            uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID         `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	Status        AuthorStatus      `bun:"status,notnull" json:"status,omitempty"`
	Bio           string            `bun:"bio" json:"bio,omitempty"`
	SocialLinks   map[string]string `bun:"social_links" json:"social_links,omitempty"`
	SuspendedAt   *time.Time        `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	ReviewedAt    *time.Time        `bun:"reviewed_at,nullzero" json:"reviewed_at,omitempty"`
	CreatedAt     *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time        `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults new applications to PENDING
func (p *AuthorProfile) EnsureStatus() {
	if p.Status == "" {
		p.Status = AuthorStatusPending
	}
}

// IsLive reports whether the application blocks a new one for the account.
func (p *AuthorProfile) IsLive() bool {
	return p.Status == AuthorStatusPending || p.Status == AuthorStatusApproved || p.Status == AuthorStatusSuspended
}
