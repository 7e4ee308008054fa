package accounts

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// AccountsControllerRoutes are the mounted paths. Trailing slashes matter
// to existing API clients, keep them.
type AccountsControllerRoutes struct {
	Register      string
	Activate      string
	ResetRequest  string
	ResetComplete string
	Login         string
	Refresh       string
	Logout        string
	Me            string
	Profile       string
}

type AccountsController struct {
	Debug bool
	// DeterministicIDs derives account ids from the email instead of
	// random uuids, which keeps ids stable across environment rebuilds.
	DeterministicIDs bool
	Logger           Logger
	Repo             RepositoryManager
	Config           Config
	Auther           Authenticator
	TokenService     TokenService
	Notifier         Notifier
	Store            ObjectStore
	Routes           *AccountsControllerRoutes

	register      *RegisterAccountHandler
	activate      *ActivateAccountHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	createProfile *CreateProfileHandler
}

type AccountsControllerOption func(*AccountsController) *AccountsController

func WithControllerLogger(logger Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Logger = logger
		return c
	}
}

func WithControllerDebug(debug bool) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Debug = debug
		return c
	}
}

func WithControllerDeterministicIDs(enabled bool) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.DeterministicIDs = enabled
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Repo = repo
		return c
	}
}

func WithControllerConfig(cfg Config) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Config = cfg
		return c
	}
}

func WithControllerAuther(auther Authenticator) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Auther = auther
		return c
	}
}

func WithControllerTokenService(ts TokenService) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.TokenService = ts
		return c
	}
}

func WithControllerNotifier(n Notifier) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Notifier = n
		return c
	}
}

func WithControllerStore(s ObjectStore) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Store = s
		return c
	}
}

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger: defLogger{},
		Routes: &AccountsControllerRoutes{
			Register:      "/register/",
			Activate:      "/activate/",
			ResetRequest:  "/password-reset/request/",
			ResetComplete: "/reset-password/complete/",
			Login:         "/login/",
			Refresh:       "/refresh/",
			Logout:        "/logout/",
			Me:            "/me",
			Profile:       "/profiles/",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in accounts controller...")
	}

	if c.Config == nil {
		panic("Missing Config in accounts controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in accounts controller...")
	}

	if c.TokenService == nil {
		panic("Missing TokenService in accounts controller...")
	}

	c.register = NewRegisterAccountHandler(c.Repo, c.Notifier, c.Config, c.Logger)
	c.activate = NewActivateAccountHandler(c.Repo)
	c.resetInit = NewInitializePasswordResetHandler(c.Repo, c.Notifier, c.Config, c.Logger)
	c.resetFinalize = NewFinalizePasswordResetHandler(c.Repo, c.Notifier, c.Logger)
	c.createProfile = NewCreateProfileHandler(c.Repo, c.Store, c.Logger)

	return c
}

// RegisterRoutes mounts the account lifecycle endpoints on the app.
func (a *AccountsController) RegisterRoutes(app fiber.Router) {
	app.Post(a.Routes.Register, a.Register)
	app.Post(a.Routes.Activate, a.Activate)
	app.Post(a.Routes.ResetRequest, a.PasswordResetRequest)
	app.Post(a.Routes.ResetComplete, a.PasswordResetComplete)
	app.Post(a.Routes.Login, a.Login)
	app.Post(a.Routes.Refresh, a.Refresh)
	app.Post(a.Routes.Logout, a.Logout)

	gate := ProtectedRoute(a.Config, a.TokenService, a.AuthErrorHandler)
	account := RequireAccount(a.Config, a.Repo, a.Logger)

	app.Get(a.Routes.Me, gate, account, a.Me)
	app.Post(a.Routes.Profile, gate, account, a.ProfileCreate)
	app.Get(a.Routes.Profile+"me", gate, account, a.ProfileShow)
}

// AuthErrorHandler maps gate failures to the wire format.
func (a *AccountsController) AuthErrorHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error

	if IsTokenExpiredError(err) {
		richErr = ErrTokenExpired
	} else if IsTokenMalformedError(err) {
		richErr = ErrTokenMalformed
	} else {
		richErr = errors.Wrap(err, errors.CategoryAuth, err.Error()).
			WithCode(errors.CodeUnauthorized)
	}

	return respondError(c, richErr)
}

// RegisterPayload is the registration request body
type RegisterPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// AccountSummary is what registration and /me return
type AccountSummary struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active"`
	Group     string     `json:"group,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func summarize(user *User) AccountSummary {
	return AccountSummary{
		ID:        user.ID.String(),
		Email:     user.Email,
		IsActive:  user.IsActive,
		Group:     user.GroupName(),
		CreatedAt: user.CreatedAt,
	}
}

func (a *AccountsController) Register(c *fiber.Ctx) error {
	payload := RegisterPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	var created *User
	err := a.register.Execute(c.UserContext(), RegisterAccountMessage{
		Email:     payload.Email,
		Password:  payload.Password,
		UseHashid: a.DeterministicIDs,
		OnResponse: func(resp *RegisterAccountResponse) {
			created = resp.User
		},
	})
	if err != nil {
		a.Logger.Error("Register error: %v", err)
		return respondError(c, err)
	}

	if a.Debug {
		a.Logger.Debug("registered account: %s", print.MaybePrettyJSON(created))
	}

	return c.Status(fiber.StatusCreated).JSON(summarize(created))
}

// ActivatePayload is the activation request body
type ActivatePayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (r ActivatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AccountsController) Activate(c *fiber.Ctx) error {
	payload := ActivatePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	err := a.activate.Execute(c.UserContext(), ActivateAccountMessage{
		Email: payload.Email,
		Token: payload.Token,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"detail": "Account activated.",
	})
}

// ResetRequestPayload is the password reset request body
type ResetRequestPayload struct {
	Email string `json:"email"`
}

func (r ResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountsController) PasswordResetRequest(c *fiber.Ctx) error {
	payload := ResetRequestPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	err := a.resetInit.Execute(c.UserContext(), InitializePasswordResetMessage{
		Email: payload.Email,
	})
	if err != nil {
		// the caller still gets the generic message, anything else would
		// leak which addresses are registered
		a.Logger.Error("PasswordResetRequest error: %v", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"detail": ResetRequestedMessage,
	})
}

// ResetCompletePayload is the password reset completion body
type ResetCompletePayload struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r ResetCompletePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AccountsController) PasswordResetComplete(c *fiber.Ctx) error {
	payload := ResetCompletePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	err := a.resetFinalize.Execute(c.UserContext(), FinalizePasswordResetMessage{
		Email:    payload.Email,
		Token:    payload.Token,
		Password: payload.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"detail": "Password has been changed.",
	})
}

// LoginPayload is the login request body
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountsController) Login(c *fiber.Ctx) error {
	payload := LoginPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	pair, err := a.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("Login error: %v", err)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pair)
}

// RefreshPayload is the token refresh request body
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AccountsController) Refresh(c *fiber.Ctx) error {
	payload := RefreshPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	accessToken, err := a.Auther.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"access_token": accessToken,
	})
}

func (a *AccountsController) Logout(c *fiber.Ctx) error {
	payload := RefreshPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	if err := a.Auther.Logout(c.UserContext(), payload.RefreshToken); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"detail": "Logged out.",
	})
}

func (a *AccountsController) Me(c *fiber.Ctx) error {
	user, ok := AccountFromFiber(c)
	if !ok {
		return respondError(c, ErrUnauthenticated)
	}
	return c.Status(fiber.StatusOK).JSON(summarize(user))
}

// ProfileCreatePayload is the profile creation request body
type ProfileCreatePayload struct {
	UserID      string     `json:"user_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Gender      string     `json:"gender"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Info        string     `json:"info"`
	Phone       string     `json:"phone_number"`
	Avatar      []byte     `json:"avatar,omitempty"`
	AvatarType  string     `json:"avatar_content_type,omitempty"`
}

func (r ProfileCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Gender, validation.In("", "male", "female", "other")),
	)
}

func (a *AccountsController) ProfileCreate(c *fiber.Ctx) error {
	user, ok := AccountFromFiber(c)
	if !ok {
		return respondError(c, ErrUnauthenticated)
	}

	payload := ProfileCreatePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return respondValidationError(c, err)
	}

	// only the owner or an admin can create a profile for an account
	target := user.ID
	if payload.UserID != "" && payload.UserID != user.ID.String() {
		if user.GroupName() != GroupAdmin {
			return respondError(c, ErrPermissionDenied)
		}
		parsed, err := uuid.Parse(payload.UserID)
		if err != nil {
			return respondError(c, errors.Wrap(err, errors.CategoryBadInput, "invalid user_id").
				WithCode(errors.CodeBadRequest))
		}
		target = parsed
	}

	var profile *UserProfile
	err := a.createProfile.Execute(c.UserContext(), CreateProfileMessage{
		UserID:      target,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Gender:      payload.Gender,
		DateOfBirth: payload.DateOfBirth,
		Info:        payload.Info,
		Phone:       payload.Phone,
		Avatar:      payload.Avatar,
		AvatarType:  payload.AvatarType,
		OnResponse: func(resp *CreateProfileResponse) {
			profile = resp.Profile
		},
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (a *AccountsController) ProfileShow(c *fiber.Ctx) error {
	user, ok := AccountFromFiber(c)
	if !ok {
		return respondError(c, ErrUnauthenticated)
	}

	profile, err := GetProfile(c.UserContext(), a.Repo, a.Store, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}

// respondError maps rich errors to the wire format. Unknown errors become
// an opaque 500 so driver details never leak.
func respondError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = errors.CodeInternal
	}

	body := fiber.Map{
		"detail": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	if code >= fiber.StatusInternalServerError {
		body["detail"] = "An unexpected server error occurred"
		delete(body, "code")
	}

	return c.Status(code).JSON(body)
}

func respondValidationError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"detail": "Validation failed.",
		"errors": err,
	})
}
