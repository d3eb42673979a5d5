package identity

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AuthorApplication is the payload for an account applying to become an author.
type AuthorApplication struct {
	AccountID   uuid.UUID
	Bio         string
	SocialLinks map[string]string
}

// AuthorWorkflow drives author applications and the moderation actions around
// them. Role checks happen at the HTTP boundary; the workflow trusts the actor
// it is given and records it in the audit trail.
type AuthorWorkflow struct {
	repo       RepositoryManager
	machine    *AuthorStateMachine
	dispatcher dispatcher
	logger     Logger
}

// AuthorWorkflowOption configures the workflow.
type AuthorWorkflowOption func(*AuthorWorkflow)

// WithAuthorNotifier sets the transport used for status change notifications.
func WithAuthorNotifier(n Notifier) AuthorWorkflowOption {
	return func(w *AuthorWorkflow) {
		w.dispatcher = newDispatcher(n, w.logger)
	}
}

// WithAuthorLogger sets the logger.
func WithAuthorLogger(logger Logger) AuthorWorkflowOption {
	return func(w *AuthorWorkflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewAuthorWorkflow builds the workflow around a state machine.
func NewAuthorWorkflow(repo RepositoryManager, machine *AuthorStateMachine, opts ...AuthorWorkflowOption) *AuthorWorkflow {
	workflow := &AuthorWorkflow{
		repo:       repo,
		machine:    machine,
		logger:     defLogger{},
		dispatcher: newDispatcher(nil, nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(workflow)
		}
	}

	return workflow
}

// Apply submits an author application. An account with a live application
// (pending, approved, or suspended) cannot apply again; a rejected one can,
// which returns the rejected record to PENDING with the new content.
func (w *AuthorWorkflow) Apply(ctx context.Context, application AuthorApplication) (*AuthorProfile, error) {
	existing, err := w.repo.AuthorProfiles().GetByAccount(ctx, application.AccountID)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load author profile")
	}

	if existing != nil {
		if existing.IsLive() {
			return nil, ErrInvalidTransition.WithMetadata(map[string]any{
				"from": existing.Status,
				"to":   AuthorStatusPending,
			})
		}

		existing.Bio = application.Bio
		existing.SocialLinks = application.SocialLinks

		profile, err := w.repo.AuthorProfiles().Resubmit(ctx, existing)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to resubmit author application")
		}

		return profile, nil
	}

	profile := &AuthorProfile{
		AccountID:   application.AccountID,
		Status:      AuthorStatusPending,
		Bio:         application.Bio,
		SocialLinks: application.SocialLinks,
	}

	profile, err = w.repo.AuthorProfiles().Create(ctx, profile)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create author application")
	}

	return profile, nil
}

// Approve moves a pending or suspended application to APPROVED.
func (w *AuthorWorkflow) Approve(ctx context.Context, actor ActorRef, profileID uuid.UUID) (*AuthorProfile, error) {
	return w.review(ctx, actor, profileID, AuthorStatusApproved, "your author application was approved")
}

// Reject denies a pending application.
func (w *AuthorWorkflow) Reject(ctx context.Context, actor ActorRef, profileID uuid.UUID, reason string) (*AuthorProfile, error) {
	return w.review(ctx, actor, profileID, AuthorStatusRejected, "your author application was not approved", WithTransitionReason(reason))
}

// Suspend pauses an approved author.
func (w *AuthorWorkflow) Suspend(ctx context.Context, actor ActorRef, profileID uuid.UUID, reason string) (*AuthorProfile, error) {
	return w.review(ctx, actor, profileID, AuthorStatusSuspended, "your author account was suspended", WithTransitionReason(reason))
}

// Unsuspend reinstates a suspended author.
func (w *AuthorWorkflow) Unsuspend(ctx context.Context, actor ActorRef, profileID uuid.UUID) (*AuthorProfile, error) {
	return w.review(ctx, actor, profileID, AuthorStatusApproved, "your author account was reinstated")
}

func (w *AuthorWorkflow) review(ctx context.Context, actor ActorRef, profileID uuid.UUID, to AuthorStatus, subject string, opts ...TransitionOption) (*AuthorProfile, error) {
	profile, err := w.repo.AuthorProfiles().GetByID(ctx, profileID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.New("author profile not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load author profile")
	}

	updated, err := w.machine.Transition(ctx, actor, profile, to, opts...)
	if err != nil {
		return nil, err
	}

	w.notifyStatusChange(ctx, profile.AccountID, subject, to)

	return updated, nil
}

func (w *AuthorWorkflow) notifyStatusChange(ctx context.Context, accountID uuid.UUID, subject string, to AuthorStatus) {
	account, err := w.repo.Accounts().GetByID(ctx, accountID.String())
	if err != nil {
		w.logger.Warn("unable to load account %s for status notification: %v", accountID, err)
		return
	}

	w.dispatcher.dispatch(Notification{
		Recipient: account.Email,
		Subject:   subject,
		HTMLBody:  fmt.Sprintf("<p>Your author status is now <strong>%s</strong>.</p>", to),
	})
}
