// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts repo/infra errors into gRPC status errors.
// Errors that already carry a status are returned untouched.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return status.Error(codes.AlreadyExists, "record already exists")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument is returned for malformed input.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// AlreadyExists creates a gRPC AlreadyExists error.
func AlreadyExists(msg string) error {
	return status.Error(codes.AlreadyExists, msg)
}

// PermissionDenied is returned when the caller acts on a resource it does not own
// or on a relationship it is not part of. Kept distinct from NotFound.
func PermissionDenied(msg string) error {
	return status.Error(codes.PermissionDenied, msg)
}

func NotFound(msg string) error {
	return status.Error(codes.NotFound, msg)
}

// FailedPrecondition covers policy rejections (inactive target, blocked content).
func FailedPrecondition(msg string) error {
	return status.Error(codes.FailedPrecondition, msg)
}

// Unavailable reports an external dependency (the AI service) being down.
func Unavailable(msg string) error {
	return status.Error(codes.Unavailable, msg)
}

func Unauthenticated(msg string) error {
	return status.Error(codes.Unauthenticated, msg)
}

// Code extracts the status code of err after mapping.
func Code(err error) codes.Code {
	return status.Code(Map(err))
}

// HTTPStatus translates err into an HTTP status and a client-safe message.
// Internal failures never leak their message.
func HTTPStatus(err error) (int, string) {
	st, _ := status.FromError(Map(err))

	switch st.Code() {
	case codes.OK:
		return http.StatusOK, ""
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest, st.Message()
	case codes.Unauthenticated:
		return http.StatusUnauthorized, st.Message()
	case codes.PermissionDenied:
		return http.StatusForbidden, st.Message()
	case codes.NotFound:
		return http.StatusNotFound, st.Message()
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict, st.Message()
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, st.Message()
	case codes.Unavailable:
		return http.StatusServiceUnavailable, st.Message()
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, st.Message()
	case codes.Canceled:
		return 499, st.Message()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
