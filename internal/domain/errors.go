package domain

import (
	"context"
	"errors"
)

// Input validation errors. These are reported before any network call.
var (
	ErrNoImage            = errors.New("select or capture an image first")
	ErrEmptyAddress       = errors.New("address is empty")
	ErrAddressNotFound    = errors.New("address not found")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// IsRetryable reports whether err is a transient failure of a remote
// dependency: an error in its chain reports Temporary() true, or a deadline
// expired. Such requests may succeed if tried again later.
func IsRetryable(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) && t.Temporary() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
