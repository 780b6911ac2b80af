package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"

	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
)

// maxJSONBody caps request bodies decoded by DecodeJSON.
const maxJSONBody = 1 << 20

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", "err", err)
	}
}

// Error writes err as {"error": true, "message": ...}. Server errors are
// reported to Sentry and logged with the original cause.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := svcErr.HTTPStatus(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		logger.FromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	}
	JSON(w, code, map[string]any{"error": true, "message": msg})
}

// DecodeJSON reads the request body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return svcErr.InvalidArgument("invalid JSON body")
	}
	return nil
}

// PathID parses a numeric path variable.
func PathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.InvalidArgument(name + " must be a positive integer")
	}
	return id, nil
}

// QueryInt reads an integer query parameter, returning def when absent or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryToken returns the pagination token query parameter, or nil.
func QueryToken(r *http.Request) *string {
	v := r.URL.Query().Get("token")
	if v == "" {
		return nil
	}
	return &v
}
