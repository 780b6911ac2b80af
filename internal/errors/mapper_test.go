package errors_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"gorm.io/gorm"

	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
)

func TestMap(t *testing.T) {
	assert.Nil(t, svcErr.Map(nil))
	assert.Equal(t, codes.NotFound, svcErr.Code(gorm.ErrRecordNotFound))
	assert.Equal(t, codes.NotFound, svcErr.Code(fmt.Errorf("load user: %w", gorm.ErrRecordNotFound)))
	assert.Equal(t, codes.AlreadyExists, svcErr.Code(gorm.ErrDuplicatedKey))
	assert.Equal(t, codes.DeadlineExceeded, svcErr.Code(context.DeadlineExceeded))
	assert.Equal(t, codes.Internal, svcErr.Code(fmt.Errorf("boom")))

	// status errors pass through
	err := svcErr.PermissionDenied("nope")
	assert.Equal(t, err, svcErr.Map(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{svcErr.InvalidArgument("bad"), http.StatusBadRequest, "bad"},
		{svcErr.PermissionDenied("mine"), http.StatusForbidden, "mine"},
		{svcErr.NotFound("gone"), http.StatusNotFound, "gone"},
		{svcErr.AlreadyExists("dup"), http.StatusConflict, "dup"},
		{svcErr.Unavailable("ai down"), http.StatusServiceUnavailable, "ai down"},
		{fmt.Errorf("dial tcp: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		code, msg := svcErr.HTTPStatus(tc.err)
		assert.Equal(t, tc.status, code, tc.err.Error())
		assert.Equal(t, tc.msg, msg)
	}
}
