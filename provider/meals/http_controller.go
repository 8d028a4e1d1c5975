package meals

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// Controller relays catalog pages to authenticated clients.
type Controller struct {
	client *Client
	logger Logger
}

func NewController(client *Client) *Controller {
	return &Controller{
		client: client,
		logger: noopLogger{},
	}
}

func (c *Controller) WithLogger(l Logger) *Controller {
	if l != nil {
		c.logger = l
	}
	return c
}

// RegisterRoutes mounts GET /meals, usually behind the auth middleware.
func RegisterRoutes[T any](app router.Router[T], c *Controller, middleware ...router.MiddlewareFunc) {
	app.Get("/meals", c.List, middleware...).SetName("meals.list")
}

// List proxies one catalog page. Paging parameters are bounded before the
// upstream call: page at least 1, limit between 1 and 100.
func (c *Controller) List(ctx router.Context) error {
	page := ctx.QueryInt("page", defaultPage)
	limit := ctx.QueryInt("limit", defaultLimit)

	if page < 1 {
		return c.respondError(ctx, errors.New("page must be 1 or greater", errors.CategoryValidation).
			WithCode(http.StatusUnprocessableEntity))
	}

	if limit < 1 || limit > maxLimit {
		return c.respondError(ctx, errors.New("limit must be between 1 and 100", errors.CategoryValidation).
			WithCode(http.StatusUnprocessableEntity))
	}

	body, err := c.client.List(ctx.Context(), page, limit)
	if err != nil {
		c.logger.Error("meals upstream fetch failed", "page", page, "limit", limit, "error", err)
		return c.respondError(ctx, err)
	}

	ctx.SetHeader(router.HeaderContentType, "application/json")
	return ctx.Status(http.StatusOK).Send(body)
}

func (c *Controller) respondError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(http.StatusInternalServerError)
	}

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return ctx.JSON(status, map[string]any{
		"error": map[string]any{
			"message": richErr.Message,
			"code":    richErr.TextCode,
		},
	})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
