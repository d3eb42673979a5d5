package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AuthContext is the caller's authorization context for a single request.
// Role flags come from the store at resolution time, not from the token, so
// a revoked grant takes effect on the next request.
type AuthContext struct {
	AccountID    uuid.UUID
	IsAdmin      bool
	IsAuthor     bool
	AuthorStatus AuthorStatus
}

// Snapshot converts the context into the form embedded in access tokens.
func (a AuthContext) Snapshot() RoleSnapshot {
	return RoleSnapshot{
		IsAdmin:      a.IsAdmin,
		IsAuthor:     a.IsAuthor,
		AuthorStatus: a.AuthorStatus,
	}
}

type authContextKey struct{}

// WithAuthContext attaches an AuthContext to the context.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthContextFrom retrieves the AuthContext, if any.
func AuthContextFrom(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

type accessVerifier interface {
	VerifyAccessToken(raw string) (AuthClaims, error)
}

// Resolver turns a bearer token into an AuthContext backed by current store
// state.
type Resolver struct {
	verifier accessVerifier
	repo     RepositoryManager
	logger   Logger
}

// NewResolver builds a Resolver.
func NewResolver(verifier accessVerifier, repo RepositoryManager, logger Logger) *Resolver {
	if logger == nil {
		logger = defLogger{}
	}
	return &Resolver{
		verifier: verifier,
		repo:     repo,
		logger:   logger,
	}
}

// Resolve validates the raw access token and loads the account's current
// role flags. Missing grants or profiles are the normal case, not errors.
func (r *Resolver) Resolve(ctx context.Context, raw string) (AuthContext, error) {
	if raw == "" {
		return AuthContext{}, ErrUnauthenticated
	}

	claims, err := r.verifier.VerifyAccessToken(raw)
	if err != nil {
		return AuthContext{}, ErrUnauthenticated
	}

	accountID, err := claims.AccountUUID()
	if err != nil {
		return AuthContext{}, ErrUnauthenticated
	}

	return r.SnapshotFor(ctx, accountID)
}

// SnapshotFor loads the current role flags for an account.
func (r *Resolver) SnapshotFor(ctx context.Context, accountID uuid.UUID) (AuthContext, error) {
	auth := AuthContext{AccountID: accountID}

	isAdmin, err := r.repo.AdminGrants().Exists(ctx, accountID)
	if err != nil {
		return AuthContext{}, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load admin grant")
	}
	auth.IsAdmin = isAdmin

	profile, err := r.repo.AuthorProfiles().GetByAccount(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return auth, nil
		}
		return AuthContext{}, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load author profile")
	}

	auth.IsAuthor = profile.Status == AuthorStatusApproved
	auth.AuthorStatus = profile.Status

	return auth, nil
}
