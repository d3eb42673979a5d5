package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"golang.org/x/crypto/bcrypt"
)

// MaxLoginAttempts is the number of consecutive failures before the
// cool down window kicks in.
var MaxLoginAttempts = 5

// CoolDownPeriod is how long an account stays locked after exceeding
// MaxLoginAttempts. Parsed with time.ParseDuration.
var CoolDownPeriod = "24h"

// BcryptCost is the work factor applied when hashing passwords.
var BcryptCost = 14

// HashPassword hashes a plain text secret with bcrypt.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrNoEmptyString
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to hash password")
	}

	return string(hash), nil
}

// ComparePasswordAndHash checks a plain text secret against its stored hash.
func ComparePasswordAndHash(plain, hash string) error {
	if plain == "" || hash == "" {
		return ErrNoEmptyString
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to compare password")
	}

	return nil
}

// RandomPasswordHash generates an unguessable placeholder hash for accounts
// created without a password, e.g. seeded admins.
func RandomPasswordHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to generate random password")
	}
	return HashPassword(base64.RawURLEncoding.EncodeToString(buf))
}

// Credentials verifies identifier/password pairs against stored accounts and
// maintains the per account failure counters.
type Credentials struct {
	repo   RepositoryManager
	logger Logger
}

// NewCredentials builds the credential verifier.
func NewCredentials(repo RepositoryManager, logger Logger) *Credentials {
	if logger == nil {
		logger = defLogger{}
	}
	return &Credentials{
		repo:   repo,
		logger: logger,
	}
}

// Verify resolves the account behind identifier and checks the password.
// Unknown identifiers and wrong passwords collapse into the same
// ErrInvalidCredentials so callers cannot tell which emails are registered.
func (c *Credentials) Verify(ctx context.Context, identifier, password string) (*Account, error) {
	account, err := c.repo.Accounts().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load account")
	}

	if err := c.checkCoolDown(account); err != nil {
		return nil, err
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if trackErr := c.repo.Accounts().TrackAttemptedLogin(ctx, account); trackErr != nil {
			c.logger.Error("unable to track login attempt for %s: %v", account.ID, trackErr)
		}
		return nil, ErrInvalidCredentials
	}

	if err := c.repo.Accounts().TrackSuccessfulLogin(ctx, account); err != nil {
		c.logger.Error("unable to track successful login for %s: %v", account.ID, err)
	}

	return account, nil
}

// MarkVerified flips the account's email verification flag.
func (c *Credentials) MarkVerified(ctx context.Context, account *Account) error {
	return c.repo.Accounts().MarkEmailVerified(ctx, account.ID)
}

func (c *Credentials) checkCoolDown(account *Account) error {
	if account.LoginAttempts < MaxLoginAttempts {
		return nil
	}

	if account.LoginAttemptAt == nil {
		return nil
	}

	locked, err := IsWithinThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid cool down period")
	}

	if locked {
		return ErrTooManyLoginAttempts
	}

	return nil
}
