package identity

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AdminWorkflow drives administrator invitations: an existing admin invites a
// registered account by email, the invitee redeems the single use token, and
// the grant records who invited whom.
type AdminWorkflow struct {
	repo       RepositoryManager
	tokens     *ActionTokenService
	activity   ActivitySink
	dispatcher dispatcher
	logger     Logger
	baseURL    string
}

// AdminWorkflowOption configures the workflow.
type AdminWorkflowOption func(*AdminWorkflow)

// WithAdminNotifier sets the transport used for invite emails.
func WithAdminNotifier(n Notifier) AdminWorkflowOption {
	return func(w *AdminWorkflow) {
		w.dispatcher = newDispatcher(n, w.logger)
	}
}

// WithAdminActivity sets the audit sink.
func WithAdminActivity(sink ActivitySink) AdminWorkflowOption {
	return func(w *AdminWorkflow) {
		w.activity = normalizeActivitySink(sink)
	}
}

// WithAdminLogger sets the logger.
func WithAdminLogger(logger Logger) AdminWorkflowOption {
	return func(w *AdminWorkflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithAdminBaseURL sets the base URL embedded in invite links.
func WithAdminBaseURL(baseURL string) AdminWorkflowOption {
	return func(w *AdminWorkflow) {
		w.baseURL = baseURL
	}
}

// NewAdminWorkflow builds the workflow.
func NewAdminWorkflow(repo RepositoryManager, tokens *ActionTokenService, opts ...AdminWorkflowOption) *AdminWorkflow {
	workflow := &AdminWorkflow{
		repo:       repo,
		tokens:     tokens,
		activity:   noopActivitySink{},
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

// Invite issues an admin invitation for the account registered under email.
// The inviter must hold a grant themselves; the invitee must already have an
// account. Returns the raw invite token.
func (w *AdminWorkflow) Invite(ctx context.Context, inviterID uuid.UUID, email string) (string, error) {
	isAdmin, err := w.repo.AdminGrants().Exists(ctx, inviterID)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to check inviter grant")
	}

	if !isAdmin {
		return "", ErrUnauthorized
	}

	account, err := w.repo.Accounts().GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", goerrors.New("no account registered under that email", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound)
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load invitee account")
	}

	raw, err := w.tokens.Issue(ctx, account.ID, ActionTokenAdminInvite, AdminInviteTTL, map[string]any{
		"inviter_id": inviterID.String(),
	})
	if err != nil {
		return "", err
	}

	w.dispatcher.dispatch(Notification{
		Recipient: account.Email,
		Subject:   "You have been invited to administer the site",
		HTMLBody: fmt.Sprintf(
			`<p>Follow <a href="%s">this link</a> to accept the invitation.</p>`,
			actionLink(w.baseURL, "/admin/accept", raw),
		),
	})

	w.record(ctx, ActivityEventAdminInvited, inviterID, map[string]any{
		"invitee_id": account.ID.String(),
	})

	return raw, nil
}

// ResendInvite reissues the invitation, superseding the previous token.
func (w *AdminWorkflow) ResendInvite(ctx context.Context, inviterID uuid.UUID, email string) (string, error) {
	return w.Invite(ctx, inviterID, email)
}

// AcceptInvite redeems an invite token and creates the grant. Accepting when
// a grant already exists is a no-op, not an error.
func (w *AdminWorkflow) AcceptInvite(ctx context.Context, raw string) (*AdminGrant, error) {
	consumed, err := w.tokens.Consume(ctx, raw, ActionTokenAdminInvite)
	if err != nil {
		return nil, err
	}

	existing, err := w.repo.AdminGrants().GetByAccount(ctx, consumed.AccountID)
	if err == nil {
		return existing, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to check existing grant")
	}

	grant := &AdminGrant{
		AccountID: consumed.AccountID,
	}

	if val, ok := consumed.Metadata["inviter_id"].(string); ok {
		if inviterID, err := uuid.Parse(val); err == nil {
			grant.GrantedBy = &inviterID
		}
	}

	grant, err = w.repo.AdminGrants().Create(ctx, grant)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create admin grant")
	}

	w.record(ctx, ActivityEventAdminAccepted, consumed.AccountID, nil)

	return grant, nil
}

// Bootstrap seeds the first administrator when no grants exist yet. The seed
// grant has no inviter. Safe to call on every startup.
func (w *AdminWorkflow) Bootstrap(ctx context.Context, accountID uuid.UUID) (*AdminGrant, error) {
	seeded, err := w.repo.AdminGrants().Any(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to check existing grants")
	}

	if seeded {
		return nil, nil
	}

	grant, err := w.repo.AdminGrants().Create(ctx, &AdminGrant{AccountID: accountID})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to seed admin grant")
	}

	return grant, nil
}

func (w *AdminWorkflow) record(ctx context.Context, eventType ActivityEventType, accountID uuid.UUID, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{ID: accountID.String(), Type: "account"},
		AccountID:  accountID.String(),
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := w.activity.Record(ctx, event); err != nil {
		w.logger.Error("unable to record %s for %s: %v", eventType, accountID, err)
	}
}
