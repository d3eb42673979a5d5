package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// Validate checks the payload before any store access.
func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type InitializePasswordResetResponse struct {
	Success bool
}

// InitializePasswordResetHandler starts a password reset. The response is the
// same whether the email is registered or not: an attacker cannot use this
// endpoint to enumerate accounts.
type InitializePasswordResetHandler struct {
	repo       RepositoryManager
	tokens     *ActionTokenService
	dispatcher dispatcher
	logger     Logger
	baseURL    string
}

// PasswordResetInitOption configures the handler.
type PasswordResetInitOption func(*InitializePasswordResetHandler)

// WithResetInitNotifier sets the transport for reset emails.
func WithResetInitNotifier(n Notifier) PasswordResetInitOption {
	return func(h *InitializePasswordResetHandler) {
		h.dispatcher = newDispatcher(n, h.logger)
	}
}

// WithResetInitLogger sets the logger.
func WithResetInitLogger(logger Logger) PasswordResetInitOption {
	return func(h *InitializePasswordResetHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithResetInitBaseURL sets the base URL embedded in reset links.
func WithResetInitBaseURL(baseURL string) PasswordResetInitOption {
	return func(h *InitializePasswordResetHandler) {
		h.baseURL = baseURL
	}
}

// NewInitializePasswordResetHandler builds the handler.
func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *ActionTokenService, opts ...PasswordResetInitOption) *InitializePasswordResetHandler {
	handler := &InitializePasswordResetHandler{
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

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			h.respond(event)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	raw, err := h.tokens.Issue(ctx, account.ID, ActionTokenPasswordReset, PasswordResetTTL, nil)
	if err != nil {
		return err
	}

	h.dispatcher.dispatch(Notification{
		Recipient: account.Email,
		Subject:   "Reset your password",
		HTMLBody:  `<p>Follow <a href="` + actionLink(h.baseURL, "/password-reset", raw) + `">this link</a> to choose a new password. The link expires in one hour.</p>`,
	})

	h.respond(event)
	return nil
}

func (h *InitializePasswordResetHandler) respond(event InitializePasswordResetMessage) {
	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{Success: true})
	}
}
