package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDetection is returned for detections that cannot be mapped to a
// single well-formed rectangle.
var ErrInvalidDetection = errors.New("invalid detection")

// RawDetection is the wire shape of a detection, with every accepted alias.
type RawDetection struct {
	X        *float64 `json:"x,omitempty"`
	Left     *float64 `json:"left,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Top      *float64 `json:"top,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	W        *float64 `json:"w,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	H        *float64 `json:"h,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Label    string   `json:"label,omitempty"`
	Relative bool     `json:"relative,omitempty"`
}

// NormalizeDetections maps raw backend detections to canonical detections,
// preserving order. The first malformed entry fails the whole list.
func NormalizeDetections(raws []RawDetection) ([]Detection, error) {
	out := make([]Detection, 0, len(raws))
	for i, raw := range raws {
		d, err := NormalizeDetection(raw)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// NormalizeDetection resolves field aliases and validates the rectangle.
func NormalizeDetection(raw RawDetection) (Detection, error) {
	x, err := pickAlias("x", raw.X, "left", raw.Left)
	if err != nil {
		return Detection{}, err
	}
	y, err := pickAlias("y", raw.Y, "top", raw.Top)
	if err != nil {
		return Detection{}, err
	}
	w, err := pickAlias("width", raw.Width, "w", raw.W)
	if err != nil {
		return Detection{}, err
	}
	h, err := pickAlias("height", raw.Height, "h", raw.H)
	if err != nil {
		return Detection{}, err
	}

	if w < 0 || h < 0 {
		return Detection{}, fmt.Errorf("%w: negative size %gx%g", ErrInvalidDetection, w, h)
	}

	if raw.Relative {
		for _, f := range []struct {
			name string
			v    float64
		}{{"x", x}, {"y", y}, {"width", w}, {"height", h}} {
			if f.v < 0 || f.v > 1 {
				return Detection{}, fmt.Errorf("%w: relative %s %g outside [0,1]", ErrInvalidDetection, f.name, f.v)
			}
		}
	}

	if raw.Score != nil {
		s := *raw.Score
		if math.IsNaN(s) || s < 0 || s > 1 {
			return Detection{}, fmt.Errorf("%w: score %g outside [0,1]", ErrInvalidDetection, s)
		}
	}

	return Detection{
		Label:    raw.Label,
		Score:    raw.Score,
		Rect:     Rect{X: x, Y: y, Width: w, Height: h},
		Relative: raw.Relative,
	}, nil
}

// pickAlias returns whichever of two alias fields is set. Both set to
// different values, or neither set, is an error.
func pickAlias(name string, primary *float64, alias string, secondary *float64) (float64, error) {
	var v float64
	switch {
	case primary != nil && secondary != nil:
		if *primary != *secondary {
			return 0, fmt.Errorf("%w: conflicting %s=%g and %s=%g", ErrInvalidDetection, name, *primary, alias, *secondary)
		}
		v = *primary
	case primary != nil:
		v = *primary
	case secondary != nil:
		v = *secondary
	default:
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidDetection, name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", ErrInvalidDetection, name)
	}
	return v, nil
}
