package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is the region hint used when a phone number comes in
// without a country prefix.
var DefaultPhoneRegion = "US"

type RegisterAccountMessage struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	AcceptTerms bool   `json:"accept_terms"`
	UseHashid   bool   `json:"-"`
	OnResponse  func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate checks the payload before any store access.
func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&e.AcceptTerms, validation.Required),
	)
}

type RegisterAccountResponse struct {
	Account *Account
	Success bool
}

// RegisterAccountHandler creates the account and kicks off email verification.
type RegisterAccountHandler struct {
	repo       RepositoryManager
	tokens     *ActionTokenService
	activity   ActivitySink
	dispatcher dispatcher
	logger     Logger
	baseURL    string
}

// RegisterAccountOption configures the handler.
type RegisterAccountOption func(*RegisterAccountHandler)

// WithRegisterNotifier sets the transport for verification emails.
func WithRegisterNotifier(n Notifier) RegisterAccountOption {
	return func(h *RegisterAccountHandler) {
		h.dispatcher = newDispatcher(n, h.logger)
	}
}

// WithRegisterActivity sets the audit sink.
func WithRegisterActivity(sink ActivitySink) RegisterAccountOption {
	return func(h *RegisterAccountHandler) {
		h.activity = normalizeActivitySink(sink)
	}
}

// WithRegisterLogger sets the logger.
func WithRegisterLogger(logger Logger) RegisterAccountOption {
	return func(h *RegisterAccountHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRegisterBaseURL sets the base URL embedded in verification links.
func WithRegisterBaseURL(baseURL string) RegisterAccountOption {
	return func(h *RegisterAccountHandler) {
		h.baseURL = baseURL
	}
}

// NewRegisterAccountHandler builds the handler.
func NewRegisterAccountHandler(repo RepositoryManager, tokens *ActionTokenService, opts ...RegisterAccountOption) *RegisterAccountHandler {
	handler := &RegisterAccountHandler{
		repo:       repo,
		tokens:     tokens,
		activity:   noopActivitySink{},
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

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	account := &Account{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.PasswordHash = hash
		account.Email = strings.ToLower(strings.TrimSpace(event.Email))
		account.Phone = normalizePhone(event.Phone)
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.Username = accountUsername(event.Username, account.Email)
		if event.UseHashid {
			if id, err := hashid.NewUUID(account.Email); err == nil {
				account.ID = id
			}
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			if IsUniqueViolation(err) {
				return ErrDuplicateAccount
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	// Verification token is issued after the account commits so a failed
	// registration never leaves a dangling token.
	h.sendVerification(ctx, account)

	h.recordRegistration(ctx, account)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{
			Account: account,
			Success: true,
		})
	}

	return nil
}

func (h *RegisterAccountHandler) sendVerification(ctx context.Context, account *Account) {
	raw, err := h.tokens.Issue(ctx, account.ID, ActionTokenEmailVerify, EmailVerifyTTL, nil)
	if err != nil {
		h.logger.Error("unable to issue verification token for %s: %v", account.ID, err)
		return
	}

	h.dispatcher.dispatch(Notification{
		Recipient: account.Email,
		Subject:   "Verify your email address",
		HTMLBody:  verificationEmailBody(h.baseURL, raw),
	})
}

func (h *RegisterAccountHandler) recordRegistration(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType:  ActivityEventAccountRegistered,
		Actor:      ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID:  account.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := h.activity.Record(ctx, event); err != nil {
		h.logger.Error("unable to record registration for %s: %v", account.ID, err)
	}
}

func verificationEmailBody(baseURL, rawToken string) string {
	return `<p>Follow <a href="` + actionLink(baseURL, "/verify-email", rawToken) + `">this link</a> to verify your email address.</p>`
}

// accountUsername picks the signup username, falling back to the email local
// part. Usernames are stored lowercased so duplicate detection and sign in
// lookups are case insensitive.
func accountUsername(username, email string) string {
	username = strings.TrimSpace(username)

	if username == "" && strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return strings.ToLower(username)
}

func normalizePhone(phone string) string {
	if phone == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(phone, DefaultPhoneRegion)
	if err != nil {
		return phone
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}
