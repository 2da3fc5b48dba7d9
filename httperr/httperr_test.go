package httperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	perrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Status(perrors.New(perrors.CodeInvalidInput, "bad")))
	assert.Equal(t, http.StatusTooManyRequests, Status(perrors.New(perrors.CodeRateLimit, "slow down")))
	assert.Equal(t, http.StatusServiceUnavailable, Status(perrors.Wrap(errors.New("dial"), perrors.CodeUnavailable, "store")))
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("plain")))
}

func TestAbortHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, perrors.Wrap(errors.New("redis: 10.0.0.3:6379 refused"), perrors.CodeUnavailable, "shared store get failed"))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body perrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Code)
	assert.Equal(t, "shared store get failed", body.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.True(t, c.IsAborted())
}
