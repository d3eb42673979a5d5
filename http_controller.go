package identity

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// IdentityControllerRoutes holds the mount points for the identity endpoints.
type IdentityControllerRoutes struct {
	Register           string
	VerifyEmail        string
	ResendVerification string
	SignIn             string
	SignOut            string
	Refresh            string
	PasswordReset      string
	PasswordResetDo    string
	AuthorApply        string
	AuthorReview       string
	AdminInvite        string
	AdminAccept        string
}

// IdentityController exposes the identity operations as a JSON API.
type IdentityController struct {
	Debug         bool
	Logger        Logger
	Repo          RepositoryManager
	Routes        *IdentityControllerRoutes
	Authenticator *Authenticator
	Resolver      *Resolver
	Register      *RegisterAccountHandler
	VerifyEmail   *VerifyEmailHandler
	Resend        *ResendVerificationHandler
	ResetInit     *InitializePasswordResetHandler
	ResetFinalize *FinalizePasswordResetHandler
	Authors       *AuthorWorkflow
	Admins        *AdminWorkflow
	ErrorHandler  func(router.Context, error) error
}

// IdentityControllerOption configures the controller.
type IdentityControllerOption func(*IdentityController) *IdentityController

// NewIdentityController builds the controller. It panics on missing
// collaborators since wiring happens once at startup.
func NewIdentityController(opts ...IdentityControllerOption) *IdentityController {
	c := &IdentityController{
		Logger: defLogger{},
		Routes: &IdentityControllerRoutes{
			Register:           "/register",
			VerifyEmail:        "/verify-email",
			ResendVerification: "/verify-email/resend",
			SignIn:             "/sign-in",
			SignOut:            "/sign-out",
			Refresh:            "/refresh",
			PasswordReset:      "/password-reset",
			PasswordResetDo:    "/password-reset/confirm",
			AuthorApply:        "/authors/apply",
			AuthorReview:       "/authors/:id/review",
			AdminInvite:        "/admin/invite",
			AdminAccept:        "/admin/accept",
		},
	}
	c.ErrorHandler = c.renderError

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("missing RepositoryManager in identity controller")
	}

	if c.Authenticator == nil || c.Resolver == nil {
		panic("missing authenticator wiring in identity controller")
	}

	return c
}

// RegisterIdentityRoutes mounts the identity endpoints on the router.
func RegisterIdentityRoutes[T any](app router.Router[T], opts ...IdentityControllerOption) *IdentityController {
	c := NewIdentityController(opts...)

	requireAuth := RequireAuth(c.Resolver)
	requireAdmin := RequireAdmin(c.Resolver)

	app.Post(c.Routes.Register, c.RegisterPost).SetName("identity.register")
	app.Post(c.Routes.VerifyEmail, c.VerifyEmailPost).SetName("identity.verify-email")
	app.Post(c.Routes.ResendVerification, c.ResendVerificationPost).SetName("identity.verify-email.resend")
	app.Post(c.Routes.SignIn, c.SignInPost).SetName("identity.sign-in")
	app.Post(c.Routes.SignOut, c.SignOutPost).SetName("identity.sign-out")
	app.Post(c.Routes.Refresh, c.RefreshPost).SetName("identity.refresh")
	app.Post(c.Routes.PasswordReset, c.PasswordResetPost).SetName("identity.pwd-reset")
	app.Post(c.Routes.PasswordResetDo, c.PasswordResetConfirmPost).SetName("identity.pwd-reset.confirm")

	app.Post(c.Routes.AuthorApply, requireAuth(c.AuthorApplyPost)).SetName("identity.author.apply")
	app.Post(c.Routes.AuthorReview, requireAdmin(c.AuthorReviewPost)).SetName("identity.author.review")

	app.Post(c.Routes.AdminInvite, requireAdmin(c.AdminInvitePost)).SetName("identity.admin.invite")
	app.Post(c.Routes.AdminAccept, c.AdminAcceptPost).SetName("identity.admin.accept")

	return c
}

func (c *IdentityController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterAccountMessage)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	var res *RegisterAccountResponse
	payload.OnResponse = func(resp *RegisterAccountResponse) {
		res = resp
	}

	if err := c.Register.Execute(ctx.Context(), *payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if c.Debug {
		fmt.Println(print.MaybePrettyJSON(res))
	}

	return ctx.JSON(http.StatusOK, res.Account)
}

func (c *IdentityController) VerifyEmailPost(ctx router.Context) error {
	payload := new(VerifyEmailMessage)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	var res *VerifyEmailResponse
	payload.OnResponse = func(resp *VerifyEmailResponse) {
		res = resp
	}

	if err := c.VerifyEmail.Execute(ctx.Context(), *payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, res)
}

func (c *IdentityController) ResendVerificationPost(ctx router.Context) error {
	payload := new(ResendVerificationMessage)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := c.Resend.Execute(ctx.Context(), *payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

// SignInRequest is the credential payload.
type SignInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate runs validation rules.
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (c *IdentityController) SignInPost(ctx router.Context) error {
	payload := new(SignInRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign in payload"))
	}

	pair, err := c.Authenticator.SignIn(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, pair)
}

// RefreshRequest carries the opaque refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *IdentityController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	pair, err := c.Authenticator.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (c *IdentityController) SignOutPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := c.Authenticator.SignOut(ctx.Context(), payload.RefreshToken); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (c *IdentityController) PasswordResetPost(ctx router.Context) error {
	payload := new(InitializePasswordResetMessage)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := c.ResetInit.Execute(ctx.Context(), *payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (c *IdentityController) PasswordResetConfirmPost(ctx router.Context) error {
	payload := new(FinalizePasswordResetMessage)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := c.ResetFinalize.Execute(ctx.Context(), *payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

// AuthorApplyRequest is the author application payload.
type AuthorApplyRequest struct {
	Bio         string            `json:"bio"`
	SocialLinks map[string]string `json:"social_links"`
}

// Validate runs validation rules.
func (r AuthorApplyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Bio, validation.Required, validation.Length(1, 2000)),
	)
}

func (c *IdentityController) AuthorApplyPost(ctx router.Context) error {
	auth, ok := AuthContextFrom(ctx.Context())
	if !ok {
		return c.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := new(AuthorApplyRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid application payload"))
	}

	profile, err := c.Authors.Apply(ctx.Context(), AuthorApplication{
		AccountID:   auth.AccountID,
		Bio:         payload.Bio,
		SocialLinks: payload.SocialLinks,
	})
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, profile)
}

// AuthorReviewRequest is the moderation payload.
type AuthorReviewRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Moderation actions accepted by the review endpoint.
const (
	ReviewActionApprove   = "approve"
	ReviewActionReject    = "reject"
	ReviewActionSuspend   = "suspend"
	ReviewActionUnsuspend = "unsuspend"
)

// Validate runs validation rules.
func (r AuthorReviewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Action,
			validation.Required,
			validation.In(
				ReviewActionApprove,
				ReviewActionReject,
				ReviewActionSuspend,
				ReviewActionUnsuspend,
			),
		),
	)
}

func (c *IdentityController) AuthorReviewPost(ctx router.Context) error {
	auth, ok := AuthContextFrom(ctx.Context())
	if !ok {
		return c.ErrorHandler(ctx, ErrUnauthenticated)
	}

	profileID, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	payload := new(AuthorReviewRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid review payload"))
	}

	actor := ActorRef{ID: auth.AccountID.String(), Type: "admin"}

	var profile *AuthorProfile
	switch payload.Action {
	case ReviewActionApprove:
		profile, err = c.Authors.Approve(ctx.Context(), actor, profileID)
	case ReviewActionReject:
		profile, err = c.Authors.Reject(ctx.Context(), actor, profileID, payload.Reason)
	case ReviewActionSuspend:
		profile, err = c.Authors.Suspend(ctx.Context(), actor, profileID, payload.Reason)
	case ReviewActionUnsuspend:
		profile, err = c.Authors.Unsuspend(ctx.Context(), actor, profileID)
	}

	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, profile)
}

// AdminInviteRequest carries the invitee email.
type AdminInviteRequest struct {
	Email string `json:"email"`
}

// Validate runs validation rules.
func (r AdminInviteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (c *IdentityController) AdminInvitePost(ctx router.Context) error {
	auth, ok := AuthContextFrom(ctx.Context())
	if !ok {
		return c.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := new(AdminInviteRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid invite payload"))
	}

	if _, err := c.Admins.Invite(ctx.Context(), auth.AccountID, payload.Email); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

// AdminAcceptRequest carries the invite token.
type AdminAcceptRequest struct {
	Token string `json:"token"`
}

func (c *IdentityController) AdminAcceptPost(ctx router.Context) error {
	payload := new(AdminAcceptRequest)

	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, badRequest(err))
	}

	grant, err := c.Admins.AcceptInvite(ctx.Context(), payload.Token)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, grant)
}

func (c *IdentityController) renderError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "an unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	c.Logger.Error(
		"request failed: %s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	code := richErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	return ctx.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func badRequest(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest)
}
