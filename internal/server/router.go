package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pixserve/pixserve/internal/assets"
	"github.com/pixserve/pixserve/internal/config"
	"github.com/pixserve/pixserve/internal/derive"
	"github.com/pixserve/pixserve/internal/presign"
	"github.com/pixserve/pixserve/internal/transform"
)

// AppOptions controls how the Fiber application is assembled.
type AppOptions struct {
	Logger *logrus.Logger
	Config config.Config
	Assets assets.Store
	Cache  *derive.Cache
}

const contextKeyRequestID = "_pixserve_request_id"

// NewApp builds a Fiber application exposing the upload and image routes
// with structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Assets == nil {
		return nil, errors.New("asset store is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("derivation cache is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     int(opts.Config.MaxUploadSize),
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &handler{
		logger: opts.Logger,
		cfg:    opts.Config,
		assets: opts.Assets,
		cache:  opts.Cache,
	}

	app.Post("/upload", h.handleUpload)
	app.Get("/images/*", h.handleImage)

	return app, nil
}

// handler 持有各组件的共享实例，所有路由方法挂在同一个接收者上。
type handler struct {
	logger *logrus.Logger
	cfg    config.Config
	assets assets.Store
	cache  *derive.Cache
}

// requestIDMiddleware 为每个请求生成 ID 并写回 X-Request-ID 响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// renderError 输出统一的 JSON 错误结构，不向客户端泄漏内部路径或细节。
func renderError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": code,
	})
}

// renderTypedError 把组件层的类型化错误翻译为 HTTP 状态码。
func renderTypedError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, assets.ErrNotFound):
		return renderError(c, fiber.StatusNotFound, "not_found")
	case errors.Is(err, assets.ErrInvalidPath):
		return renderError(c, fiber.StatusBadRequest, "invalid_path")
	case errors.Is(err, presign.ErrBadSignature):
		return renderError(c, fiber.StatusForbidden, "invalid_signature")
	case errors.Is(err, presign.ErrExpired):
		return renderError(c, fiber.StatusForbidden, "presigned_url_expired")
	case errors.Is(err, transform.ErrDecode),
		errors.Is(err, transform.ErrEncode),
		errors.Is(err, transform.ErrInvalidDimension):
		return renderError(c, fiber.StatusInternalServerError, "processing_failure")
	default:
		return renderError(c, fiber.StatusInternalServerError, "processing_failure")
	}
}
