package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultLabel names detections the backend left unlabeled.
	DefaultLabel = "Pothole"

	// HighConfidenceThreshold is the minimum score counted as high confidence.
	HighConfidenceThreshold = 0.6
)

// Rect is a rectangle in either natural-image pixels or display fractions,
// depending on the owning detection's Relative flag.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is a single predicted object in canonical form.
type Detection struct {
	Label    string   `json:"label,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Rect     Rect     `json:"rect"`
	Relative bool     `json:"relative,omitempty"`
}

// DisplayLabel returns the label, defaulting to DefaultLabel.
func (d Detection) DisplayLabel() string {
	if d.Label == "" {
		return DefaultLabel
	}
	return d.Label
}

// Percent returns the score as an integer percent, rounded half up.
// The second result is false when the detection carries no score.
func (d Detection) Percent() (int, bool) {
	if d.Score == nil {
		return 0, false
	}
	return int(math.Floor(*d.Score*100 + 0.5)), true
}

// Caption is the text drawn next to the box, e.g. "Pothole 73%".
func (d Detection) Caption() string {
	p, ok := d.Percent()
	if !ok {
		return strings.TrimSpace(d.DisplayLabel())
	}
	return strings.TrimSpace(fmt.Sprintf("%s %d%%", d.DisplayLabel(), p))
}

// ImageSize is a pixel resolution.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either dimension is non-positive.
func (s ImageSize) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// DetectionResult is a normalized response from the detection endpoint.
type DetectionResult struct {
	Detections []Detection `json:"detections"`
	ImageSize  *ImageSize  `json:"image_size,omitempty"`
	Engine     string      `json:"engine,omitempty"`
}

// Summary aggregates a detection list for display.
type Summary struct {
	Total          int `json:"total"`
	HighConfidence int `json:"high_confidence"`
}

// Summarize counts detections and those scoring at least HighConfidenceThreshold.
func Summarize(dets []Detection) Summary {
	s := Summary{Total: len(dets)}
	for _, d := range dets {
		if d.Score != nil && *d.Score >= HighConfidenceThreshold {
			s.HighConfidence++
		}
	}
	return s
}
