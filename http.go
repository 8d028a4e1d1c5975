package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// IdentityLocalsKey is where ProtectedRoute stores the resolved identity
// in the router locals.
const IdentityLocalsKey = "identity"

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

type HTTPAuthenticator interface {
	Middleware
	MakeClientRouteAuthErrorHandler(optionalAuth bool) func(c router.Context, err error) error
}

type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute guards a route with the full authentication ladder: token
// extraction and validation through jwtware, then account re-resolution so
// a disabled or deleted user is rejected even while holding a live token.
// The resolved identity lands in router locals and the request context.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:          cfg.GetAuthScheme(),
			ContextKey:          cfg.GetContextKey(),
			TokenLookup:         cfg.GetTokenLookup(),
			TokenValidator:      routeTokenValidator{auth: a.auth},
			ValidationListeners: []jwtware.ValidationListener{a.identityListener()},
			ContextEnricher:     enrichContextWithClaims,
		})(hf)
	}
}

func (a *RouteAuthenticator) identityListener() jwtware.ValidationListener {
	return func(ctx router.Context, claims jwtware.AuthClaims) error {
		identity, err := a.auth.IdentityFromSession(ctx.Context(), &SessionObject{
			UserID: claims.Subject(),
		})
		if err != nil {
			a.Logger.Warn("ProtectedRoute identity resolution failed", "subject", claims.Subject(), "error", err)
			return err
		}

		ctx.Locals(IdentityLocalsKey, identity)
		ctx.SetContext(WithIdentityContext(ctx.Context(), identity))
		return nil
	}
}

// MakeClientRouteAuthErrorHandler maps middleware failures to structured
// JSON responses. With optional auth the request proceeds unauthenticated.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) || err.Error() == "missing or malformed JWT" {
			richErr = ErrTokenMalformed
		} else if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.JSON(statusForError(richErr), map[string]any{
		"error": map[string]any{
			"message": richErr.Message,
			"code":    richErr.TextCode,
		},
	})
}

// routeTokenValidator bridges the Authenticator session view into the
// claims shape the middleware expects.
type routeTokenValidator struct {
	auth Authenticator
}

func (v routeTokenValidator) Validate(raw string) (jwtware.AuthClaims, error) {
	session, err := v.auth.SessionFromToken(raw)
	if err != nil {
		return nil, err
	}
	return sessionClaims{session: session}, nil
}

type sessionClaims struct {
	session Session
}

var _ AuthClaims = sessionClaims{}

func (c sessionClaims) Subject() string { return c.session.GetUserID() }
func (c sessionClaims) UserID() string  { return c.session.GetUserID() }

func (c sessionClaims) IssuedAt() time.Time {
	if at := c.session.GetIssuedAt(); at != nil {
		return *at
	}
	return time.Time{}
}

func (c sessionClaims) Expires() time.Time {
	if so, ok := c.session.(*SessionObject); ok && so.ExpirationDate != nil {
		return *so.ExpirationDate
	}
	return time.Time{}
}

func enrichContextWithClaims(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	if authClaims, ok := claims.(AuthClaims); ok {
		return WithClaimsContext(ctx, authClaims)
	}
	return ctx
}
