package identity_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/middleware/jwtware"
)

func newRouteConfig() *MockConfig {
	cfg := newMockConfig()
	cfg.On("GetSigningMethod").Return("HS256")
	cfg.On("GetContextKey").Return("claims")
	cfg.On("GetTokenLookup").Return("header:Authorization")
	cfg.On("GetAuthScheme").Return("Bearer")
	return cfg
}

func TestNewHTTPAuthenticator(t *testing.T) {
	mockAuth := new(MockAuthenticator)

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, newRouteConfig())

	require.NoError(t, err)
	assert.NotNil(t, httpAuth)
	assert.Implements(t, (*identity.HTTPAuthenticator)(nil), httpAuth)
}

func TestRouteAuthenticator_ProtectedRoute(t *testing.T) {
	ident := TestIdentity{id: "u-100", name: "Test User", email: "user@example.com"}

	newGuardedHandler := func(t *testing.T, errorHandler func(router.Context, error) error) (router.HandlerFunc, *identity.Auther, *MockIdentityProvider) {
		t.Helper()

		cfg := newRouteConfig()
		mockProvider := new(MockIdentityProvider)
		auther := identity.NewAuthenticator(mockProvider, cfg)

		httpAuth, err := identity.NewHTTPAuthenticator(auther, cfg)
		require.NoError(t, err)

		middleware := httpAuth.ProtectedRoute(cfg, errorHandler)
		handler := middleware(func(c router.Context) error { return c.Next() })
		return handler, auther, mockProvider
	}

	t.Run("valid token resolves the account", func(t *testing.T) {
		handler, auther, mockProvider := newGuardedHandler(t, func(ctx router.Context, err error) error {
			return err
		})

		token, _, err := identity.MintToken(auther.TokenService(), ident, identity.TokenOptions{
			TTL: time.Minute,
		})
		require.NoError(t, err)

		mockProvider.On("FindIdentityByIdentifier", mock.Anything, ident.email).Return(ident, nil)

		ctx := new(MockContext)
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
		ctx.On("Context").Return(context.Background())
		ctx.On("Locals", identity.IdentityLocalsKey, mock.Anything).Return(nil)
		ctx.On("Locals", "claims", mock.Anything).Return(nil)
		ctx.On("SetContext", mock.Anything).Return()

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.NextCalled, "the request should reach the handler")

		mockProvider.AssertExpectations(t)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		var captured error
		handler, auther, _ := newGuardedHandler(t, func(ctx router.Context, err error) error {
			captured = err
			return nil
		})

		token, _, err := identity.MintToken(auther.TokenService(), ident, identity.TokenOptions{
			TTL:      time.Minute,
			IssuedAt: time.Now().Add(-2 * time.Hour),
		})
		require.NoError(t, err)

		ctx := new(MockContext)
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)

		require.NoError(t, handler(ctx))
		assert.ErrorIs(t, captured, identity.ErrTokenExpired)
		assert.False(t, ctx.NextCalled)
	})

	t.Run("subject that no longer resolves is rejected", func(t *testing.T) {
		var captured error
		handler, auther, mockProvider := newGuardedHandler(t, func(ctx router.Context, err error) error {
			captured = err
			return nil
		})

		token, _, err := identity.MintToken(auther.TokenService(), ident, identity.TokenOptions{
			TTL: time.Minute,
		})
		require.NoError(t, err)

		mockProvider.On("FindIdentityByIdentifier", mock.Anything, ident.email).
			Return(nil, identity.ErrUnknownSubject)

		ctx := new(MockContext)
		ctx.On("GetString", "Authorization", "").Return("Bearer " + token)
		ctx.On("Context").Return(context.Background())

		require.NoError(t, handler(ctx))
		assert.ErrorIs(t, captured, identity.ErrUnknownSubject)
		assert.False(t, ctx.NextCalled, "a live token must not outlast the account")
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		var captured error
		handler, _, _ := newGuardedHandler(t, func(ctx router.Context, err error) error {
			captured = err
			return nil
		})

		ctx := new(MockContext)
		ctx.On("GetString", "Authorization", "").Return("")

		require.NoError(t, handler(ctx))
		assert.ErrorContains(t, captured, jwtware.ErrJWTMissingOrMalformed.Error())
	})
}

func TestRouteAuthenticator_MakeClientRouteAuthErrorHandler(t *testing.T) {
	mockAuth := new(MockAuthenticator)

	httpAuth, err := identity.NewHTTPAuthenticator(mockAuth, newRouteConfig())
	require.NoError(t, err)

	t.Run("optional auth proceeds unauthenticated", func(t *testing.T) {
		ctx := new(MockContext)

		handler := httpAuth.MakeClientRouteAuthErrorHandler(true)

		err := handler(ctx, jwtware.ErrJWTMissingOrMalformed)
		require.NoError(t, err)
		assert.True(t, ctx.NextCalled, "next handler should run for optional routes")

		ctx.AssertExpectations(t)
	})

	t.Run("required auth answers with a structured 401", func(t *testing.T) {
		var payload map[string]any

		ctx := new(MockContext)
		ctx.On("OriginalURL").Return("/private")
		ctx.On("JSON", http.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]any)
		}).Return(nil)

		handler := httpAuth.MakeClientRouteAuthErrorHandler(false)

		err := handler(ctx, identity.ErrTokenExpired)
		require.NoError(t, err)

		errBody, ok := payload["error"].(map[string]any)
		require.True(t, ok, "expected an error envelope")
		assert.Equal(t, identity.TextCodeTokenExpired, errBody["code"])

		ctx.AssertExpectations(t)
	})

	t.Run("missing token maps to the malformed sentinel", func(t *testing.T) {
		var captured error

		orig := httpAuth.ErrorHandler
		httpAuth.ErrorHandler = func(c router.Context, err error) error {
			captured = err
			return nil
		}
		defer func() { httpAuth.ErrorHandler = orig }()

		handler := httpAuth.MakeClientRouteAuthErrorHandler(false)

		ctx := new(MockContext)
		err := handler(ctx, jwtware.ErrJWTMissingOrMalformed)
		require.NoError(t, err)
		assert.ErrorIs(t, captured, identity.ErrTokenMalformed)
	})
}
