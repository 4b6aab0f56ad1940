package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"permission denied", &PositionError{Code: PermissionDenied}, "Location access denied. Please enable location permissions and try again."},
		{"unavailable", &PositionError{Code: PositionUnavailable}, "Location information is unavailable."},
		{"timeout", &PositionError{Code: PositionTimeout}, "Location request timed out. Please try again."},
		{"wrapped", fmt.Errorf("locate: %w", &PositionError{Code: PositionTimeout}), "Location request timed out. Please try again."},
		{"unsupported", ErrGeolocationUnsupported, "Geolocation is not supported on this device."},
		{"other", errors.New("boom"), "An unknown error occurred while retrieving location."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PositionMessage(tt.err))
		})
	}
}

func TestStaticLocator(t *testing.T) {
	t.Run("fixed position", func(t *testing.T) {
		pos := &Position{Coordinates: Coordinates{Latitude: 28.61, Longitude: 77.2}}
		got, err := StaticLocator{Position: pos}.Locate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 28.61, got.Latitude)
	})

	t.Run("no fix", func(t *testing.T) {
		_, err := StaticLocator{}.Locate(context.Background())
		var pe *PositionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, PositionUnavailable, pe.Code)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := StaticLocator{}.Locate(ctx)
		var pe *PositionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, PositionTimeout, pe.Code)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
