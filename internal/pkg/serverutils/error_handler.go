package serverutils

import (
	"errors"
	"strconv"

	"euno-analytics-be/internal/dto"
	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns handler errors into the response envelope.
// Unknown errors are logged and reported without detail.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var denied *dto.AdmissionDeniedError
		var invalid *ValidationError
		var fiberErr *fiber.Error

		switch {
		case errors.As(err, &denied):
			if denied.RetryAfterSeconds != nil {
				ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(*denied.RetryAfterSeconds))
			}
			return ctx.Status(denied.HTTPStatus()).JSON(ErrorResponseWithData(denied.HTTPStatus(), denied.Error(), denied))
		case errors.As(err, &invalid):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponseWithData(fiber.StatusBadRequest, "Invalid request", invalid.Fields))
		case errors.Is(err, conversation.ErrTurnInProgress):
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(fiber.StatusConflict, err.Error()))
		case errors.Is(err, dto.ErrNotFound):
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, err.Error()))
		case errors.As(err, &fiberErr):
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		log.Error(logger.ModuleHTTP, "Unhandled request error", map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"error":  err.Error(),
		})
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
