package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIssueSupersedesPreviousToken(t *testing.T) {
	repo := &MockRepositoryManager{}
	tokens := &MockActionTokens{}
	repo.On("ActionTokens").Return(tokens)
	runTxPassthrough(repo)

	accountID := uuid.New()

	var created *identity.ActionToken
	tokens.On("SupersedeTx", mock.Anything, mock.Anything, accountID, identity.ActionTokenEmailVerify, mock.Anything).
		Return(nil).Once()
	tokens.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&identity.ActionToken{}, nil).
		Run(func(args mock.Arguments) {
			created = args.Get(2).(*identity.ActionToken)
		}).Once()

	svc := identity.NewActionTokenService(repo)

	raw, err := svc.Issue(context.Background(), accountID, identity.ActionTokenEmailVerify, identity.EmailVerifyTTL, map[string]any{"source": "signup"})
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	require.NotNil(t, created)
	assert.Equal(t, accountID, created.AccountID)
	assert.Equal(t, identity.ActionTokenEmailVerify, created.Kind)
	assert.NotEqual(t, raw, created.TokenHash)
	assert.Equal(t, "signup", created.Metadata["source"])

	tokens.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestConsumeHappyPath(t *testing.T) {
	repo := &MockRepositoryManager{}
	tokens := &MockActionTokens{}
	repo.On("ActionTokens").Return(tokens)
	runTxPassthrough(repo)

	accountID := uuid.New()
	record := &identity.ActionToken{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      identity.ActionTokenPasswordReset,
		ExpiresAt: time.Now().Add(time.Hour),
		Metadata:  map[string]any{"inviter_id": "abc"},
	}

	tokens.On("GetByHash", mock.Anything, mock.Anything, identity.ActionTokenPasswordReset).
		Return(record, nil).Once()
	tokens.On("ConsumeTx", mock.Anything, mock.Anything, record.ID, mock.Anything).
		Return(true, nil).Once()

	svc := identity.NewActionTokenService(repo)

	consumed, err := svc.Consume(context.Background(), "raw-token", identity.ActionTokenPasswordReset)
	require.NoError(t, err)
	assert.Equal(t, accountID, consumed.AccountID)
	assert.Equal(t, "abc", consumed.Metadata["inviter_id"])

	tokens.AssertExpectations(t)
}

func TestConsumeUnknownToken(t *testing.T) {
	repo := &MockRepositoryManager{}
	tokens := &MockActionTokens{}
	repo.On("ActionTokens").Return(tokens)

	tokens.On("GetByHash", mock.Anything, mock.Anything, identity.ActionTokenEmailVerify).
		Return(nil, repository.NewRecordNotFound()).Once()

	svc := identity.NewActionTokenService(repo)

	_, err := svc.Consume(context.Background(), "nope", identity.ActionTokenEmailVerify)
	assert.ErrorIs(t, err, identity.ErrTokenNotFound)

	_, err = svc.Consume(context.Background(), "", identity.ActionTokenEmailVerify)
	assert.ErrorIs(t, err, identity.ErrTokenNotFound)
}

func TestConsumeExpiryWinsOverConsumed(t *testing.T) {
	repo := &MockRepositoryManager{}
	tokens := &MockActionTokens{}
	repo.On("ActionTokens").Return(tokens)

	consumedAt := time.Now().Add(-2 * time.Hour)
	record := &identity.ActionToken{
		ID:         uuid.New(),
		Kind:       identity.ActionTokenPasswordReset,
		ExpiresAt:  time.Now().Add(-time.Hour),
		ConsumedAt: &consumedAt,
	}

	tokens.On("GetByHash", mock.Anything, mock.Anything, identity.ActionTokenPasswordReset).
		Return(record, nil).Once()

	svc := identity.NewActionTokenService(repo)

	_, err := svc.Consume(context.Background(), "stale", identity.ActionTokenPasswordReset)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}

func TestConsumeAlreadyConsumed(t *testing.T) {
	repo := &MockRepositoryManager{}
	tokens := &MockActionTokens{}
	repo.On("ActionTokens").Return(tokens)

	consumedAt := time.Now().Add(-time.Minute)
	record := &identity.ActionToken{
		ID:         uuid.New(),
		Kind:       identity.ActionTokenEmailVerify,
		ExpiresAt:  time.Now().Add(time.Hour),
		ConsumedAt: &consumedAt,
	}

	tokens.On("GetByHash", mock.Anything, mock.Anything, identity.ActionTokenEmailVerify).
		Return(record, nil).Once()

	svc := identity.NewActionTokenService(repo)

	_, err := svc.Consume(context.Background(), "used", identity.ActionTokenEmailVerify)
	assert.ErrorIs(t, err, identity.ErrTokenConsumed)
}

func TestConsumeConcurrentLoserGetsConsumed(t *testing.T) {
	repo := &MockRepositoryManager{}
	tokens := &MockActionTokens{}
	repo.On("ActionTokens").Return(tokens)
	runTxPassthrough(repo)

	record := &identity.ActionToken{
		ID:        uuid.New(),
		Kind:      identity.ActionTokenAdminInvite,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	tokens.On("GetByHash", mock.Anything, mock.Anything, identity.ActionTokenAdminInvite).
		Return(record, nil).Once()
	// The conditional update finds consumed_at already set by the winner.
	tokens.On("ConsumeTx", mock.Anything, mock.Anything, record.ID, mock.Anything).
		Return(false, nil).Once()

	svc := identity.NewActionTokenService(repo)

	_, err := svc.Consume(context.Background(), "raced", identity.ActionTokenAdminInvite)
	assert.ErrorIs(t, err, identity.ErrTokenConsumed)

	tokens.AssertExpectations(t)
}
