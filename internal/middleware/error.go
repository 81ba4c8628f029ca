package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/logger"
	"orgfolio/internal/pricesource"
)

// ErrorHandler turns the last error recorded on the context into the JSON
// error envelope when the handler did not write a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr, known := Classify(err)
		if !known || appErr.Internal != nil {
			logger.Named("http").Errorw("request failed",
				"code", appErr.Code,
				"error", err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", RequestID(c),
			)
		}
		abortWithAppError(c, appErr)
	}
}

// Classify maps err to the AppError sent to the client. The second result is
// false when err matched nothing and was reported as an internal error.
func Classify(err error) (*apperrors.AppError, bool) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}

	var fetchErr *pricesource.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return apperrors.Wrap(apperrors.ErrSourceUnavailable, err), true
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.ErrSourceUnavailable, err), true
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrNotFound, true
	}
	return apperrors.ErrInternalServer, false
}
