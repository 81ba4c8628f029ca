package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "orgfolio/internal/errors"
)

// PipelineCaller is stored as the user id of requests authenticated by API key.
const PipelineCaller = "pipeline"

// APIKeyHeader carries the pipeline key.
const APIKeyHeader = "X-API-Key"

var (
	errPipelineNotConfigured = &apperrors.AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
	errInvalidAPIKey         = &apperrors.AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
)

// PipelineAuthMiddleware guards the ingestion control endpoints. apiKeys is
// a comma separated list so a key can be rotated without downtime; an empty
// list disables the endpoints.
func PipelineAuthMiddleware(apiKeys string) gin.HandlerFunc {
	keys := splitKeys(apiKeys)
	return func(c *gin.Context) {
		if len(keys) == 0 {
			abortWithAppError(c, errPipelineNotConfigured)
			return
		}
		if !matchesAny(keys, []byte(c.GetHeader(APIKeyHeader))) {
			abortWithAppError(c, errInvalidAPIKey)
			return
		}
		c.Set(UserIDKey, PipelineCaller)
		c.Next()
	}
}

func splitKeys(raw string) [][]byte {
	var keys [][]byte
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return keys
}

// matchesAny compares against every key so timing does not reveal which one matched.
func matchesAny(keys [][]byte, got []byte) bool {
	matched := 0
	for _, k := range keys {
		matched |= subtle.ConstantTimeCompare(got, k)
	}
	return matched == 1
}
