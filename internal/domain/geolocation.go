package domain

import (
	"context"
	"errors"
	"time"
)

// PositionErrorCode mirrors the failure codes of device geolocation APIs.
type PositionErrorCode int

const (
	PermissionDenied    PositionErrorCode = 1
	PositionUnavailable PositionErrorCode = 2
	PositionTimeout     PositionErrorCode = 3
)

// ErrGeolocationUnsupported is returned when no position source is configured.
var ErrGeolocationUnsupported = errors.New("geolocation is not supported")

// PositionError is a failed position lookup.
type PositionError struct {
	Code PositionErrorCode
	Err  error
}

func (e *PositionError) Error() string {
	var reason string
	switch e.Code {
	case PermissionDenied:
		reason = "permission denied"
	case PositionUnavailable:
		reason = "position unavailable"
	case PositionTimeout:
		reason = "timeout"
	default:
		reason = "unknown error"
	}
	if e.Err != nil {
		return "geolocation: " + reason + ": " + e.Err.Error()
	}
	return "geolocation: " + reason
}

func (e *PositionError) Unwrap() error { return e.Err }

// PositionMessage returns the user-facing text for a position lookup failure.
func PositionMessage(err error) string {
	if errors.Is(err, ErrGeolocationUnsupported) {
		return "Geolocation is not supported on this device."
	}
	var pe *PositionError
	if errors.As(err, &pe) {
		switch pe.Code {
		case PermissionDenied:
			return "Location access denied. Please enable location permissions and try again."
		case PositionUnavailable:
			return "Location information is unavailable."
		case PositionTimeout:
			return "Location request timed out. Please try again."
		}
	}
	return "An unknown error occurred while retrieving location."
}

// Position is a device fix.
type Position struct {
	Coordinates
	Accuracy  float64 // meters
	Timestamp time.Time
}

// Locator provides the device's current position.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// StaticLocator reports a fixed position, e.g. one supplied on the command line.
// A nil Position behaves like a device without a fix.
type StaticLocator struct {
	Position *Position
}

func (l StaticLocator) Locate(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, &PositionError{Code: PositionTimeout, Err: err}
	}
	if l.Position == nil {
		return Position{}, &PositionError{Code: PositionUnavailable}
	}
	if err := l.Position.Validate(); err != nil {
		return Position{}, &PositionError{Code: PositionUnavailable, Err: err}
	}
	return *l.Position, nil
}
