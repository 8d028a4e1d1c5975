package identity

import (
	"net/http"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the JSON signup and signin endpoints.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signup, controller.SignupPost).
		SetName("auth.signup.post")

	app.Post(controller.Routes.Signin, controller.SigninPost).
		SetName("auth.signin.post")

	return controller
}

type AuthControllerRoutes struct {
	Signup string
	Signin string
}

type AuthController struct {
	Logger   Logger
	Repo     RepositoryManager
	Auther   Authenticator
	Config   Config
	Routes   *AuthControllerRoutes
	Register *RegisterUserHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = l
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerRegisterHandler(h *RegisterUserHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Register = h
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Signup: "/auth/signup",
			Signin: "/auth/signin",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	if c.Register == nil {
		c.Register = NewRegisterUserHandler(c.Repo).WithLogger(c.Logger)
	}

	return c
}

// TokenResponse is the payload returned by both signup and signin.
type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        PublicUser `json:"user"`
}

// SignupRequest payload
type SignupRequest struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 128),
			validation.By(validatePasswordComplexity),
		),
	)
}

// SigninRequest payload
type SigninRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SigninRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// SignupPost creates an account and answers with a fresh token so the new
// user is signed in immediately.
func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return a.respondError(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Info("signup validation failed", "error", err)
		return a.respondValidationError(ctx, err)
	}

	user, err := a.Register.Register(ctx.Context(), RegisterUserMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		a.Logger.Error("signup register user", "error", err)
		return a.respondError(ctx, err)
	}

	token, err := a.Auther.IssueToken(IdentityFromUser(user))
	if err != nil {
		a.Logger.Error("signup token issue", "error", err)
		return a.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, a.tokenResponse(token, user))
}

// SigninPost exchanges credentials for a token.
func (a *AuthController) SigninPost(ctx router.Context) error {
	payload := new(SigninRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signin parse payload", "error", err)
		return a.respondError(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse request body").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Info("signin validation failed", "error", err)
		return a.respondValidationError(ctx, err)
	}

	token, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.respondError(ctx, err)
	}

	user, err := a.Repo.Users().GetByEmail(ctx.Context(), payload.Email)
	if err != nil {
		a.Logger.Error("signin user reload", "error", err)
		return a.respondError(ctx, errors.Wrap(err, errors.CategoryInternal, "failed to load account"))
	}

	return ctx.JSON(http.StatusOK, a.tokenResponse(token, user))
}

func (a *AuthController) tokenResponse(token string, user *User) TokenResponse {
	return TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   a.Config.GetTokenExpiration() * 60,
		User:        user.Public(),
	}
}

func (a *AuthController) respondError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	message := richErr.Message
	if richErr.Category == errors.CategoryInternal {
		// internal details stay in the logs
		message = "An unexpected server error occurred"
	}

	return ctx.JSON(statusForError(richErr), map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    richErr.TextCode,
		},
	})
}

func (a *AuthController) respondValidationError(ctx router.Context, err error) error {
	return ctx.JSON(http.StatusUnprocessableEntity, map[string]any{
		"error": map[string]any{
			"message": "validation failed",
			"code":    "VALIDATION_ERROR",
			"fields":  formatValidationErrors(err),
		},
	})
}

func statusForError(err *errors.Error) int {
	if err.Code != 0 {
		return err.Code
	}

	switch err.Category {
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func formatValidationErrors(err error) map[string]string {
	out := map[string]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}
	out["payload"] = err.Error()
	return out
}

// validatePasswordComplexity requires at least one letter and one digit,
// matching the registration bounds enforced upstream.
func validatePasswordComplexity(value any) error {
	s, _ := value.(string)

	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return errors.New("must contain at least one letter and one digit", errors.CategoryValidation)
	}

	return nil
}
