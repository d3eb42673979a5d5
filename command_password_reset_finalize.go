package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	OnResponse      func(resp *FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "account.password_reset_finalize" }

// Validate checks the payload before any store access.
func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&e.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
	)
}

// ValidateStringEquals builds an ozzo rule asserting equality with expected.
func ValidateStringEquals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return goerrors.New("values do not match", goerrors.CategoryValidation)
		}
		return nil
	}
}

type FinalizePasswordResetResponse struct {
	AccountID string
	Success   bool
}

// FinalizePasswordResetHandler redeems a reset token and swaps the password.
// Every refresh token family the account holds is revoked: a stolen session
// does not survive a password reset.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *ActionTokenService
	activity ActivitySink
	logger   Logger
}

// PasswordResetFinalizeOption configures the handler.
type PasswordResetFinalizeOption func(*FinalizePasswordResetHandler)

// WithResetFinalizeActivity sets the audit sink.
func WithResetFinalizeActivity(sink ActivitySink) PasswordResetFinalizeOption {
	return func(h *FinalizePasswordResetHandler) {
		h.activity = normalizeActivitySink(sink)
	}
}

// WithResetFinalizeLogger sets the logger.
func WithResetFinalizeLogger(logger Logger) PasswordResetFinalizeOption {
	return func(h *FinalizePasswordResetHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewFinalizePasswordResetHandler builds the handler.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *ActionTokenService, opts ...PasswordResetFinalizeOption) *FinalizePasswordResetHandler {
	handler := &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid reset payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	consumed, err := h.tokens.Consume(ctx, event.Token, ActionTokenPasswordReset)
	if err != nil {
		return err
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Accounts().ResetPasswordTx(ctx, tx, consumed.AccountID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset password")
		}

		return h.repo.RefreshTokens().RevokeByAccountTx(ctx, tx, consumed.AccountID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	h.record(ctx, consumed.AccountID.String())

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{
			AccountID: consumed.AccountID.String(),
			Success:   true,
		})
	}

	return nil
}

func (h *FinalizePasswordResetHandler) record(ctx context.Context, accountID string) {
	event := ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		Actor:      ActorRef{ID: accountID, Type: "account"},
		AccountID:  accountID,
		OccurredAt: time.Now(),
	}

	if err := h.activity.Record(ctx, event); err != nil {
		h.logger.Error("unable to record password reset for %s: %v", accountID, err)
	}
}
