package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

// Validate checks the payload before any store access.
func (e VerifyEmailMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
	)
}

type VerifyEmailResponse struct {
	AccountID string
	Success   bool
}

// VerifyEmailHandler consumes a verification token and flips the account flag.
type VerifyEmailHandler struct {
	repo   RepositoryManager
	tokens *ActionTokenService
}

// NewVerifyEmailHandler builds the handler.
func NewVerifyEmailHandler(repo RepositoryManager, tokens *ActionTokenService) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:   repo,
		tokens: tokens,
	}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid verification payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	consumed, err := h.tokens.Consume(ctx, event.Token, ActionTokenEmailVerify)
	if err != nil {
		return err
	}

	if err := h.repo.Accounts().MarkEmailVerified(ctx, consumed.AccountID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to mark email verified")
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{
			AccountID: consumed.AccountID.String(),
			Success:   true,
		})
	}

	return nil
}

type ResendVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "account.resend_verification" }

// Validate checks the payload before any store access.
func (e ResendVerificationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type ResendVerificationResponse struct {
	Success bool
}

// ResendVerificationHandler reissues the verification token. The previous
// token is superseded; an unknown email or an already verified account both
// report success so the endpoint does not reveal which emails are registered.
type ResendVerificationHandler struct {
	repo       RepositoryManager
	tokens     *ActionTokenService
	dispatcher dispatcher
	logger     Logger
	baseURL    string
}

// ResendVerificationOption configures the handler.
type ResendVerificationOption func(*ResendVerificationHandler)

// WithResendNotifier sets the transport for verification emails.
func WithResendNotifier(n Notifier) ResendVerificationOption {
	return func(h *ResendVerificationHandler) {
		h.dispatcher = newDispatcher(n, h.logger)
	}
}

// WithResendLogger sets the logger.
func WithResendLogger(logger Logger) ResendVerificationOption {
	return func(h *ResendVerificationHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithResendBaseURL sets the base URL embedded in verification links.
func WithResendBaseURL(baseURL string) ResendVerificationOption {
	return func(h *ResendVerificationHandler) {
		h.baseURL = baseURL
	}
}

// NewResendVerificationHandler builds the handler.
func NewResendVerificationHandler(repo RepositoryManager, tokens *ActionTokenService, opts ...ResendVerificationOption) *ResendVerificationHandler {
	handler := &ResendVerificationHandler{
		repo:       repo,
		tokens:     tokens,
		logger:     defLogger{},
		dispatcher: newDispatcher(nil, nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid resend payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			h.respond(event)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to load account")
	}

	if account.EmailVerified {
		h.respond(event)
		return nil
	}

	raw, err := h.tokens.Issue(ctx, account.ID, ActionTokenEmailVerify, EmailVerifyTTL, nil)
	if err != nil {
		return err
	}

	h.dispatcher.dispatch(Notification{
		Recipient: account.Email,
		Subject:   "Verify your email address",
		HTMLBody:  verificationEmailBody(h.baseURL, raw),
	})

	h.respond(event)
	return nil
}

func (h *ResendVerificationHandler) respond(event ResendVerificationMessage) {
	if event.OnResponse != nil {
		event.OnResponse(&ResendVerificationResponse{Success: true})
	}
}
