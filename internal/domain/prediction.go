package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RiskLevel is the flood-risk class predicted for a location.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// ParseRiskLevel maps a model label to a RiskLevel, case-insensitively.
func ParseRiskLevel(label string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskUnknown
	}
}

// Advisory returns the guidance shown alongside a risk level.
func (r RiskLevel) Advisory() string {
	switch r {
	case RiskLow:
		return "Minimal flood risk detected at your location. Normal activities can proceed, but stay aware of weather conditions."
	case RiskMedium:
		return "Moderate flood risk detected at your location. Monitor weather updates and prepare for potential water accumulation."
	case RiskHigh:
		return "High flood risk detected at your location! Take immediate precautions, avoid low-lying areas, and follow local emergency guidelines."
	default:
		return ""
	}
}

// Prediction is the model output for a single location.
type Prediction struct {
	Class      int     `json:"class"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // percent, 0–100
}

// Risk returns the prediction's label as a RiskLevel.
func (p Prediction) Risk() RiskLevel {
	return ParseRiskLevel(p.Label)
}

// DerivedFeatures are the environmental inputs the backend derived from a
// location. Field names follow the backend's feature columns.
type DerivedFeatures struct {
	Elevation       float64 `json:"Elevation"`
	RoadDensity     float64 `json:"Road_Density"`
	RainMM          float64 `json:"Rain_mm"`
	RainPast3h      float64 `json:"Rain_Past3h"`
	DrainWaterLevel float64 `json:"Drain_Water_Level"`
	SoilMoisture    float64 `json:"Soil_Moisture"`
}

// TimeUsed reports which time features the backend fed to the model.
type TimeUsed struct {
	HourOfDay int `json:"hour_of_day"`
	Month     int `json:"month"`
	DayOfWeek int `json:"day_of_week"`
}

// LocationPrediction is the response body of the location endpoints.
type LocationPrediction struct {
	Location        *Coordinates     `json:"location,omitempty"`
	Prediction      *Prediction      `json:"prediction"`
	DerivedFeatures *DerivedFeatures `json:"derived_features,omitempty"`
	TimeUsed        *TimeUsed        `json:"time_used,omitempty"`
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects non-finite or out-of-range coordinates.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		c.Latitude < -90 || c.Latitude > 90 ||
		c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: %g,%g", ErrInvalidCoordinates, c.Latitude, c.Longitude)
	}
	return nil
}

// String formats the pair as "28.613900° N, 77.209000° E".
func (c Coordinates) String() string {
	return FormatLatitude(c.Latitude) + ", " + FormatLongitude(c.Longitude)
}

// FormatLatitude renders a latitude with six decimals and a hemisphere letter.
func FormatLatitude(v float64) string {
	return formatCoordinate(v, "N", "S")
}

// FormatLongitude renders a longitude with six decimals and a hemisphere letter.
func FormatLongitude(v float64) string {
	return formatCoordinate(v, "E", "W")
}

func formatCoordinate(v float64, positive, negative string) string {
	dir := positive
	if v < 0 {
		dir = negative
	}
	return fmt.Sprintf("%.6f° %s", math.Abs(v), dir)
}

// LocationQuery is the request body of the location endpoints. Timestamp is
// only sent to the time-aware endpoint.
type LocationQuery struct {
	Coordinates
	Timestamp *time.Time `json:"timestamp,omitempty"`
}
