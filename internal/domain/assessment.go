package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AssessmentRequest asks for the flood risk at an address or a coordinate
// pair. It is the payload of the pipeline's source topic.
type AssessmentRequest struct {
	ID        string     `json:"id,omitempty"`
	Address   string     `json:"address,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Coordinates returns the request's coordinates when both are present.
func (r AssessmentRequest) Coordinates() (Coordinates, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}, true
}

// ParseAssessmentRequest decodes a source message. The message key is used as
// the request ID when the payload has none.
func ParseAssessmentRequest(raw RawEvent) (AssessmentRequest, error) {
	var req AssessmentRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return AssessmentRequest{}, fmt.Errorf("parse assessment request: %w", err)
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.ID == "" {
		req.ID = string(raw.Key)
	}
	if _, ok := req.Coordinates(); !ok && req.Address == "" {
		return AssessmentRequest{}, errors.New("parse assessment request: address or latitude/longitude required")
	}
	return req, nil
}

// Assessment is a completed flood-risk evaluation.
type Assessment struct {
	ID               string           `json:"id"`
	Address          string           `json:"address,omitempty"`
	FormattedAddress string           `json:"formatted_address,omitempty"`
	Location         Coordinates      `json:"location"`
	Risk             RiskLevel        `json:"risk"`
	Confidence       float64          `json:"confidence"`
	Advisory         string           `json:"advisory,omitempty"`
	Prediction       Prediction       `json:"prediction"`
	DerivedFeatures  *DerivedFeatures `json:"derived_features,omitempty"`
	TimeUsed         *TimeUsed        `json:"time_used,omitempty"`
	Endpoint         string           `json:"endpoint"`
	AssessedAt       time.Time        `json:"assessed_at"`
}

// NewAssessment builds an Assessment from a backend prediction. An empty id
// is replaced by a deterministic one derived from location and time.
func NewAssessment(id string, loc Coordinates, lp LocationPrediction, endpoint string) Assessment {
	at := Now()
	if id == "" {
		id = generateID(loc, at)
	}
	var p Prediction
	if lp.Prediction != nil {
		p = *lp.Prediction
	}
	risk := p.Risk()
	return Assessment{
		ID:              id,
		Location:        loc,
		Risk:            risk,
		Confidence:      p.Confidence,
		Advisory:        risk.Advisory(),
		Prediction:      p,
		DerivedFeatures: lp.DerivedFeatures,
		TimeUsed:        lp.TimeUsed,
		Endpoint:        endpoint,
		AssessedAt:      at,
	}
}

// SerializeAssessment marshals an assessment into a sink message.
func SerializeAssessment(a Assessment) (OutputEvent, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return OutputEvent{
		Key:   []byte(a.ID),
		Value: data,
		Headers: map[string]string{
			"risk":        string(a.Risk),
			"assessed_at": a.AssessedAt.Format(time.RFC3339),
		},
	}, nil
}

// generateID hashes location and minute so replays within a minute collapse
// to the same ID.
func generateID(loc Coordinates, at time.Time) string {
	input := fmt.Sprintf("%.5f|%.5f|%s", loc.Latitude, loc.Longitude, at.Truncate(time.Minute).Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "risk-" + hex.EncodeToString(hash[:8])
}
