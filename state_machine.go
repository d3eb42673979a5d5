package identity

import (
	"context"
	"time"
)

// authorTransitions is the legal transition table for author applications.
// PENDING and REJECTED are entry and exit points of review; SUSPENDED only
// exists for previously approved authors.
var authorTransitions = map[AuthorStatus]map[AuthorStatus]struct{}{
	AuthorStatusPending: {
		AuthorStatusApproved: {},
		AuthorStatusRejected: {},
	},
	AuthorStatusApproved: {
		AuthorStatusSuspended: {},
	},
	AuthorStatusSuspended: {
		AuthorStatusApproved: {},
	},
}

// CanTransitionAuthor reports whether from -> to is a legal status change.
func CanTransitionAuthor(from, to AuthorStatus) bool {
	targets, ok := authorTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// TransitionOption carries optional context for a status change.
type TransitionOption func(*transitionContext)

type transitionContext struct {
	reason   string
	metadata map[string]any
}

// WithTransitionReason records why the transition happened.
func WithTransitionReason(reason string) TransitionOption {
	return func(t *transitionContext) {
		t.reason = reason
	}
}

// WithTransitionMetadata attaches arbitrary context to the activity event.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(t *transitionContext) {
		t.metadata = metadata
	}
}

// AuthorStateMachine applies status transitions to author profiles, enforcing
// the legality table and stamping the review timestamps.
type AuthorStateMachine struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// StateMachineOption configures the machine.
type StateMachineOption func(*AuthorStateMachine)

// WithStateMachineClock overrides the clock, mostly for tests.
func WithStateMachineClock(now func() time.Time) StateMachineOption {
	return func(m *AuthorStateMachine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithStateMachineActivity sets the sink that receives transition events.
func WithStateMachineActivity(sink ActivitySink) StateMachineOption {
	return func(m *AuthorStateMachine) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger sets the logger.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(m *AuthorStateMachine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewAuthorStateMachine builds the machine.
func NewAuthorStateMachine(repo RepositoryManager, opts ...StateMachineOption) *AuthorStateMachine {
	machine := &AuthorStateMachine{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(machine)
		}
	}

	return machine
}

// Transition moves the profile to the target status. Illegal moves return
// ErrInvalidTransition with the attempted pair in the metadata.
func (m *AuthorStateMachine) Transition(ctx context.Context, actor ActorRef, profile *AuthorProfile, to AuthorStatus, opts ...TransitionOption) (*AuthorProfile, error) {
	tctx := &transitionContext{}
	for _, opt := range opts {
		if opt != nil {
			opt(tctx)
		}
	}

	from := profile.Status

	if !CanTransitionAuthor(from, to) {
		return nil, ErrInvalidTransition.WithMetadata(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	now := m.now()

	updateOpts := []ProfileUpdateOption{
		WithProfileReviewedAt(&now),
	}

	switch to {
	case AuthorStatusSuspended:
		updateOpts = append(updateOpts, WithProfileSuspendedAt(&now))
	case AuthorStatusApproved:
		// Clears the suspension stamp when reinstating.
		updateOpts = append(updateOpts, WithProfileSuspendedAt(nil))
	}

	updated, err := m.repo.AuthorProfiles().UpdateStatus(ctx, profile.ID, to, updateOpts...)
	if err != nil {
		return nil, err
	}

	m.emit(ctx, actor, profile, from, to, tctx, now)

	return updated, nil
}

func (m *AuthorStateMachine) emit(ctx context.Context, actor ActorRef, profile *AuthorProfile, from, to AuthorStatus, tctx *transitionContext, at time.Time) {
	metadata := map[string]any{}
	for k, v := range tctx.metadata {
		metadata[k] = v
	}
	if tctx.reason != "" {
		metadata["reason"] = tctx.reason
	}
	metadata["profile_id"] = profile.ID.String()

	event := ActivityEvent{
		EventType:  ActivityEventAuthorStatusChanged,
		Actor:      actor,
		AccountID:  profile.AccountID.String(),
		FromStatus: from,
		ToStatus:   to,
		Metadata:   metadata,
		OccurredAt: at,
	}

	if err := m.activity.Record(ctx, event); err != nil {
		m.logger.Error("unable to record author transition %s -> %s for %s: %v", from, to, profile.AccountID, err)
	}
}
