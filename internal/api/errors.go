package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stridefit/stride/internal/domain"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

// errValidation marks a request the client must fix.
var errValidation = errors.New("invalid request")

// decode reads a JSON body into dst and validates its struct tags.
// An empty body decodes to the zero value.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", errValidation, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min", "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "max", "lte":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

// statusFor maps a service error to an HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTimeZone),
		errors.Is(err, domain.ErrInvalidTokenCount):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrUnknownEvent):
		return http.StatusUnprocessableEntity, "unknown_event"
	case errors.Is(err, domain.ErrInsufficientTokens):
		return http.StatusConflict, "insufficient_tokens"
	case errors.Is(err, domain.ErrDayAlreadyCounted):
		return http.StatusConflict, "day_already_counted"
	case errors.Is(err, domain.ErrStreakBroken):
		return http.StatusConflict, "streak_broken"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case domain.IsStorageError(err):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail writes err with its mapped status. Server-side failures are logged
// and their detail is not exposed.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, typ := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = http.StatusText(status)
	}
	writeError(w, status, typ, msg)
}
