package response

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"platform/internal/apperr"
)

func TestFromErrorDenialsAreUniform(t *testing.T) {
	missing := apperr.Deniedf("catalog item x not found in scope")
	foreign := apperr.Deniedf("catalog item y belongs to another location")

	statusMissing, bodyMissing := FromError(missing)
	statusForeign, bodyForeign := FromError(foreign)

	assert.Equal(t, http.StatusForbidden, statusMissing)
	assert.Equal(t, statusMissing, statusForeign)
	assert.Equal(t, bodyMissing, bodyForeign, "missing and out-of-scope rows must be indistinguishable")
	assert.Equal(t, DeniedMessage, bodyMissing.Error)
}

func TestFromErrorInvalidInput(t *testing.T) {
	status, body := FromError(apperr.Invalidf("start date %q: expected YYYY-MM-DD", "nope"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error, "expected YYYY-MM-DD")
}

func TestFromErrorConflictCarriesCurrentState(t *testing.T) {
	status, body := FromError(apperr.NewConflict("COMPLETED"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "COMPLETED", body.Current)
}

func TestFromErrorUnavailableIsRetryable(t *testing.T) {
	status, body := FromError(fmt.Errorf("%w: dial tcp refused", apperr.ErrUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.True(t, body.Retryable)
}

func TestFromErrorUnknown(t *testing.T) {
	status, _ := FromError(fmt.Errorf("something else"))
	assert.Equal(t, http.StatusInternalServerError, status)
}
