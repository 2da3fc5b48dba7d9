// Package httperr renders platform errors as HTTP responses.
package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
	perrors "github.com/jmgilman/go/errors"
)

// Status maps an error code to an HTTP status. Unknown codes are 500.
func Status(err error) int {
	switch perrors.GetCode(err) {
	case perrors.CodeInvalidInput, perrors.CodeInvalidConfig:
		return http.StatusBadRequest
	case perrors.CodeNotFound:
		return http.StatusNotFound
	case perrors.CodeConflict:
		return http.StatusConflict
	case perrors.CodeRateLimit:
		return http.StatusTooManyRequests
	case perrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case perrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes err as a JSON error body and stops the handler chain.
// The wrapped cause is never exposed.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(Status(err), perrors.ToJSON(err))
}
