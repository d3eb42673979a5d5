package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeDuplicateAccount signals a unique email/username collision
	TextCodeDuplicateAccount = "DUPLICATE_ACCOUNT"
	// TextCodeInvalidCredentials signals a failed password verification
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeTokenExpired signals an expired access or action token
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenConsumed signals a single use token presented twice
	TextCodeTokenConsumed = "TOKEN_ALREADY_USED"
	// TextCodeTokenReuse signals a rotated refresh token presented again
	TextCodeTokenReuse = "TOKEN_REUSE_DETECTED"
	// TextCodeInvalidTransition signals an illegal author status change
	TextCodeInvalidTransition = "INVALID_AUTHOR_STATE_TRANSITION"
)

// ErrDuplicateAccount is returned when the email or username is taken.
var ErrDuplicateAccount = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is returned for an unknown identifier or a password
// mismatch. Callers cannot distinguish the two cases.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while the cool down window is active.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_LOGIN_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when a request carries no valid access token.
var ErrUnauthenticated = goerrors.New("missing or invalid access token", goerrors.CategoryAuth).
	WithTextCode("UNAUTHENTICATED").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthorized is returned when the caller's role does not allow an action.
var ErrUnauthorized = goerrors.New("insufficient permissions", goerrors.CategoryAuth).
	WithTextCode("UNAUTHORIZED").
	WithCode(goerrors.CodeForbidden)

// ErrTokenNotFound is returned when a presented token matches no record.
var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
	WithTextCode("TOKEN_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when an access token fails signature or shape checks.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenConsumed is returned when a single use token was already consumed.
var ErrTokenConsumed = goerrors.New("token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenConsumed).
	WithCode(goerrors.CodeConflict)

// ErrTokenReuseDetected is returned when a rotated or revoked refresh token is
// presented again. The whole token family is revoked as a side effect before
// this error reaches the caller.
var ErrTokenReuseDetected = goerrors.New("refresh token reuse detected", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenReuse).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidTransition is returned when a requested author status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid author state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the low level bcrypt mismatch error.
var ErrMismatchedHashAndPassword = goerrors.New("hashed password mismatch", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoDatabaseConnection is returned when the repository manager has no DB handle.
var ErrNoDatabaseConnection = goerrors.New("no database connection", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString rejects empty secrets before they reach the hasher.
var ErrNoEmptyString = goerrors.New("value cannot be an empty string", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// IsUniqueViolation reports whether err is a driver level unique constraint
// failure. Matches the sqlite and postgres message shapes the supported
// dialects produce; there is no portable typed error across drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
