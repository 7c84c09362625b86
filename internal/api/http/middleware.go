package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/observability"
	apperrors "github.com/spec-kit/token-auth-service/pkg/util/errorutil"
)

const defaultRealm = "token-auth-service"

// RegisterMiddlewares attaches the request timeout, access log and error
// handler. The access log wraps the error handler so it sees the final status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}

			domainErr := apperrors.ToDomainError(err)
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			requestID := c.GetRespHeader(observability.RequestIDHeader)
			if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
				logger.Error("request failed",
					zap.String("request_id", requestID),
					zap.String("code", domainErr.Code),
					zap.Error(domainErr))
			}
			err = writeError(c, domainErr, requestID)
		}()
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, domainErr *apperrors.DomainError, requestID string) error {
	if challenge := bearerChallenge(realm(c), domainErr); challenge != "" {
		c.Set(fiber.HeaderWWWAuthenticate, challenge)
	}

	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	if requestID != "" {
		body["request_id"] = requestID
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}

// bearerChallenge builds the WWW-Authenticate value for authentication
// failures: 401 for missing or rejected credentials, 400 for a Bearer header
// without a token and 403 for missing authorities.
func bearerChallenge(realm string, domainErr *apperrors.DomainError) string {
	switch {
	case domainErr.Code == apperrors.CodeInvalidToken:
		return fmt.Sprintf(`Bearer realm=%q, error="invalid_token"`, realm)
	case domainErr.Code == apperrors.CodeInvalidAuthorizationHeader:
		return fmt.Sprintf(`Bearer realm=%q, error="invalid_request"`, realm)
	case domainErr.HTTPStatus == fiber.StatusUnauthorized:
		return fmt.Sprintf(`Bearer realm=%q`, realm)
	case domainErr.HTTPStatus == fiber.StatusForbidden:
		return fmt.Sprintf(`Bearer realm=%q, error="insufficient_scope"`, realm)
	default:
		return ""
	}
}

func realm(c *fiber.Ctx) string {
	if name := c.App().Config().AppName; name != "" {
		return name
	}
	return defaultRealm
}
