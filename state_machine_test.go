package identity_test

import (
	"context"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionAuthor(t *testing.T) {
	cases := []struct {
		from, to identity.AuthorStatus
		allowed  bool
	}{
		{identity.AuthorStatusPending, identity.AuthorStatusApproved, true},
		{identity.AuthorStatusPending, identity.AuthorStatusRejected, true},
		{identity.AuthorStatusPending, identity.AuthorStatusSuspended, false},
		{identity.AuthorStatusApproved, identity.AuthorStatusSuspended, true},
		{identity.AuthorStatusApproved, identity.AuthorStatusRejected, false},
		{identity.AuthorStatusApproved, identity.AuthorStatusPending, false},
		{identity.AuthorStatusSuspended, identity.AuthorStatusApproved, true},
		{identity.AuthorStatusSuspended, identity.AuthorStatusRejected, false},
		{identity.AuthorStatusRejected, identity.AuthorStatusApproved, false},
		{identity.AuthorStatusRejected, identity.AuthorStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, identity.CanTransitionAuthor(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionIllegalMove(t *testing.T) {
	repo := &MockRepositoryManager{}
	machine := identity.NewAuthorStateMachine(repo)

	profile := &identity.AuthorProfile{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Status:    identity.AuthorStatusPending,
	}

	_, err := machine.Transition(context.Background(), identity.ActorRef{}, profile, identity.AuthorStatusSuspended)
	assert.ErrorIs(t, err, identity.ErrInvalidTransition)
}

func TestTransitionApproveEmitsActivity(t *testing.T) {
	repo := &MockRepositoryManager{}
	profiles := &MockAuthorProfiles{}
	sink := &MockActivitySink{}
	repo.On("AuthorProfiles").Return(profiles)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	machine := identity.NewAuthorStateMachine(repo,
		identity.WithStateMachineClock(func() time.Time { return now }),
		identity.WithStateMachineActivity(sink),
		identity.WithStateMachineLogger(testLogger{}),
	)

	profile := &identity.AuthorProfile{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Status:    identity.AuthorStatusPending,
	}

	approved := &identity.AuthorProfile{
		ID:        profile.ID,
		AccountID: profile.AccountID,
		Status:    identity.AuthorStatusApproved,
	}

	profiles.On("UpdateStatus", mock.Anything, profile.ID, identity.AuthorStatusApproved).
		Return(approved, nil).Once()

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt identity.ActivityEvent) bool {
		return evt.EventType == identity.ActivityEventAuthorStatusChanged &&
			evt.FromStatus == identity.AuthorStatusPending &&
			evt.ToStatus == identity.AuthorStatusApproved &&
			evt.AccountID == profile.AccountID.String() &&
			evt.OccurredAt.Equal(now)
	})).Return(nil).Once()

	got, err := machine.Transition(context.Background(), identity.ActorRef{ID: "admin-1", Type: "admin"}, profile, identity.AuthorStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, identity.AuthorStatusApproved, got.Status)

	profiles.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestTransitionSuspendAndReinstate(t *testing.T) {
	repo := &MockRepositoryManager{}
	profiles := &MockAuthorProfiles{}
	repo.On("AuthorProfiles").Return(profiles)

	machine := identity.NewAuthorStateMachine(repo)

	profile := &identity.AuthorProfile{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Status:    identity.AuthorStatusApproved,
	}

	suspended := &identity.AuthorProfile{
		ID:     profile.ID,
		Status: identity.AuthorStatusSuspended,
	}

	profiles.On("UpdateStatus", mock.Anything, profile.ID, identity.AuthorStatusSuspended).
		Return(suspended, nil).Once()

	got, err := machine.Transition(context.Background(), identity.ActorRef{}, profile, identity.AuthorStatusSuspended,
		identity.WithTransitionReason("policy violation"),
	)
	require.NoError(t, err)
	assert.Equal(t, identity.AuthorStatusSuspended, got.Status)

	reinstated := &identity.AuthorProfile{
		ID:     profile.ID,
		Status: identity.AuthorStatusApproved,
	}

	profiles.On("UpdateStatus", mock.Anything, profile.ID, identity.AuthorStatusApproved).
		Return(reinstated, nil).Once()

	got, err = machine.Transition(context.Background(), identity.ActorRef{}, got, identity.AuthorStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, identity.AuthorStatusApproved, got.Status)

	profiles.AssertExpectations(t)
}
