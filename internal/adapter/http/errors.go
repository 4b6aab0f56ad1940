package http

import (
	"context"
	"errors"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/assess"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

// badRequestError marks malformed client input.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		badReq    *badRequestError
		tooLarge  *http.MaxBytesError
		apiErr    *predict.APIError
		transport *predict.TransportError
		position  *domain.PositionError
	)
	switch {
	case errors.As(err, &badReq),
		errors.Is(err, domain.ErrNoImage),
		errors.Is(err, domain.ErrEmptyAddress),
		errors.Is(err, domain.ErrInvalidCoordinates):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrAddressNotFound):
		return http.StatusNotFound
	case errors.Is(err, assess.ErrGeocodingDisabled),
		errors.Is(err, domain.ErrGeolocationUnsupported),
		errors.As(err, &position):
		return http.StatusServiceUnavailable
	case errors.As(err, &transport):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &apiErr), predict.IsInvalidResponse(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "status", status)
	} else {
		s.logger.Warn("request rejected", "error", err, "status", status)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
