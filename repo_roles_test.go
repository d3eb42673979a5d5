package identity_test

import (
	"context"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotForPlainAccount(t *testing.T) {
	repo, _ := setupRepoManager(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	issuer := identity.NewTokenIssuer(repo, testConfig())
	resolver := identity.NewResolver(issuer, repo, testLogger{})

	// An account with no grant and no author profile is the common case and
	// must resolve cleanly.
	auth, err := resolver.SnapshotFor(ctx, account.ID)
	require.NoError(t, err)

	assert.Equal(t, account.ID, auth.AccountID)
	assert.False(t, auth.IsAdmin)
	assert.False(t, auth.IsAuthor)
	assert.Empty(t, auth.AuthorStatus)
}

func TestVerifyUnknownIdentifierAgainstStore(t *testing.T) {
	repo, _ := setupRepoManager(t)
	ctx := context.Background()
	seedAccount(t, repo)

	creds := identity.NewCredentials(repo, testLogger{})

	_, err := creds.Verify(ctx, "nobody@example.com", "whatever-password")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestApplyOnFreshAccountCreatesPending(t *testing.T) {
	repo, _ := setupRepoManager(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	workflow := identity.NewAuthorWorkflow(repo, identity.NewAuthorStateMachine(repo),
		identity.WithAuthorLogger(testLogger{}),
	)

	profile, err := workflow.Apply(ctx, identity.AuthorApplication{
		AccountID: account.ID,
		Bio:       "I write about databases",
	})
	require.NoError(t, err)
	assert.Equal(t, identity.AuthorStatusPending, profile.Status)

	// A second application while the first is pending is refused.
	_, err = workflow.Apply(ctx, identity.AuthorApplication{AccountID: account.ID})
	assert.ErrorIs(t, err, identity.ErrInvalidTransition)
}

func TestApplyAfterRejectionReusesRow(t *testing.T) {
	repo, _ := setupRepoManager(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	rejected, err := repo.AuthorProfiles().Create(ctx, &identity.AuthorProfile{
		AccountID: account.ID,
		Status:    identity.AuthorStatusRejected,
		Bio:       "first attempt",
	})
	require.NoError(t, err)

	workflow := identity.NewAuthorWorkflow(repo, identity.NewAuthorStateMachine(repo),
		identity.WithAuthorLogger(testLogger{}),
	)

	profile, err := workflow.Apply(ctx, identity.AuthorApplication{
		AccountID: account.ID,
		Bio:       "second attempt",
	})
	require.NoError(t, err)

	assert.Equal(t, rejected.ID, profile.ID, "the unique account constraint forces row reuse")
	assert.Equal(t, identity.AuthorStatusPending, profile.Status)
	assert.Equal(t, "second attempt", profile.Bio)

	stored, err := repo.AuthorProfiles().GetByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.AuthorStatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedAt)
}

func TestReinstateClearsSuspensionStamp(t *testing.T) {
	repo, _ := setupRepoManager(t)
	ctx := context.Background()
	account := seedAccount(t, repo)

	profile, err := repo.AuthorProfiles().Create(ctx, &identity.AuthorProfile{
		AccountID: account.ID,
		Status:    identity.AuthorStatusPending,
	})
	require.NoError(t, err)

	machine := identity.NewAuthorStateMachine(repo)
	actor := identity.ActorRef{ID: account.ID.String(), Type: "admin"}

	approved, err := machine.Transition(ctx, actor, profile, identity.AuthorStatusApproved)
	require.NoError(t, err)

	suspended, err := machine.Transition(ctx, actor, approved, identity.AuthorStatusSuspended)
	require.NoError(t, err)
	require.NotNil(t, suspended.SuspendedAt)

	reinstated, err := machine.Transition(ctx, actor, suspended, identity.AuthorStatusApproved)
	require.NoError(t, err)
	assert.Nil(t, reinstated.SuspendedAt)

	stored, err := repo.AuthorProfiles().GetByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.AuthorStatusApproved, stored.Status)
	assert.Nil(t, stored.SuspendedAt, "reinstating must clear the suspension stamp in the store")
	assert.NotNil(t, stored.ReviewedAt)
}

func TestDuplicateAccountsRejectedByConstraint(t *testing.T) {
	repo, _ := setupRepoManager(t)
	ctx := context.Background()

	_, err := repo.Accounts().Create(ctx, &identity.Account{
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "irrelevant",
	})
	require.NoError(t, err)

	_, err = repo.Accounts().Create(ctx, &identity.Account{
		Email:        "alice@example.com",
		Username:     "alice2",
		PasswordHash: "irrelevant",
	})
	require.Error(t, err)
	assert.True(t, identity.IsUniqueViolation(err), "duplicate email: %v", err)

	_, err = repo.Accounts().Create(ctx, &identity.Account{
		Email:        "alice2@example.com",
		Username:     "alice",
		PasswordHash: "irrelevant",
	})
	require.Error(t, err)
	assert.True(t, identity.IsUniqueViolation(err), "duplicate username: %v", err)
}

func TestRotateUnknownTokenAgainstStore(t *testing.T) {
	repo, _ := setupRepoManager(t)
	ctx := context.Background()
	seedAccount(t, repo)

	issuer := identity.NewTokenIssuer(repo, testConfig())

	_, _, err := issuer.Rotate(ctx, "never-issued-token")
	assert.ErrorIs(t, err, identity.ErrTokenNotFound)
}
