package rest

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/nines-backend/internal/apperror"
)

type errorResponse struct {
	Code    apperror.Code `json:"code"`
	Message string        `json:"message"`
}

func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindRejected:
		return http.StatusUnprocessableEntity
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {code, message}. Internal failures are logged and never exposed.
func respondError(ctx echo.Context, log *slog.Logger, err error) error {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		log.Error("request failed", "path", ctx.Path(), "error", err)

		return ctx.JSON(http.StatusInternalServerError, errorResponse{
			Code:    apperror.CodeInternal,
			Message: "internal server error",
		})
	}

	message := err.Error()
	if appErr, ok := asAppError(err); ok {
		message = appErr.Message
	}

	return ctx.JSON(statusOf(kind), errorResponse{
		Code:    apperror.CodeOf(err),
		Message: message,
	})
}
