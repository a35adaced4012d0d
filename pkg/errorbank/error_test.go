package errorbank

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{Forbidden("nope"), http.StatusForbidden, codes.PermissionDenied},
		{NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{Conflict("dup"), http.StatusConflict, codes.AlreadyExists},
		{InvalidState("locked"), http.StatusConflict, codes.FailedPrecondition},
		{Unprocessable("invalid"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.StatusCode(), "kind=%s", tc.err.Kind())
		assert.Equal(t, tc.code, tc.err.GRPCCode(), "kind=%s", tc.err.Kind())
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	appErr := From(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.ErrorIs(t, appErr, cause)
}

func TestFromPreservesAppErrors(t *testing.T) {
	original := InvalidState("only a draft order can be confirmed")
	assert.Same(t, original, From(original))

	wrapped := NotFound("order not found", WithCause(errors.New("sql: no rows")))
	assert.Same(t, wrapped, From(wrapped))
}

func TestDetails(t *testing.T) {
	err := Conflict("draft exists", WithDetail("customer_id", int64(7)))
	assert.Equal(t, int64(7), err.Details()["customer_id"])
}
