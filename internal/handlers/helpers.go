package handlers

import (
	"github.com/gin-gonic/gin"

	"orgfolio/internal/date"
	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/logger"
	"orgfolio/internal/middleware"
	"orgfolio/internal/services"
)

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// getUserID extracts the authenticated caller from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	v, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return "", apperrors.ErrUnauthorized
	}
	userID, ok := v.(string)
	if !ok || userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parseDateQuery parses an optional YYYY-MM-DD query parameter.
// Returns nil when the parameter is absent.
func parseDateQuery(c *gin.Context, param string) (*date.Date, error) {
	s := c.Query(param)
	if s == "" {
		return nil, nil
	}
	d, err := date.Parse(s)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param+", expected YYYY-MM-DD")
	}
	return &d, nil
}

// respondWithError writes the JSON error envelope for err. Errors that are
// not AppErrors are classified first; anything unknown becomes a 500.
func respondWithError(c *gin.Context, err error) {
	appErr, known := middleware.Classify(err)
	if !known || appErr.Internal != nil {
		logger.Named("http").Errorw("request failed",
			"code", appErr.Code,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", middleware.RequestID(c),
		)
	}
	c.JSON(appErr.StatusCode, ErrorResponse{Error: ErrorDetail{Code: appErr.Code, Message: appErr.Message}})
}

// recordAudit stamps entry with the request's caller, address and id, then stores it.
func recordAudit(c *gin.Context, audit services.AuditServicer, entry services.AuditEntry) {
	if entry.UserID == "" {
		entry.UserID = c.GetString(middleware.UserIDKey)
	}
	entry.IPAddress = c.ClientIP()
	entry.RequestID = middleware.RequestID(c)
	audit.Log(c.Request.Context(), entry)
}
