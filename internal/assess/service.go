// Package assess coordinates user input, the geocoder and the prediction
// backend into flood-risk assessments and pothole detections.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/observability"
)

// ErrGeocodingDisabled is returned for address queries when no geocoder is configured.
var ErrGeocodingDisabled = errors.New("address lookup is disabled")

// Predictor is the prediction backend.
type Predictor interface {
	DetectPotholes(ctx context.Context, up predict.Upload) (domain.DetectionResult, error)
	PredictLocation(ctx context.Context, ep predict.Endpoint, q domain.LocationQuery) (domain.LocationPrediction, error)
}

// Query describes one assessment. Exactly one of Address or Location is
// used; Location wins when both are set.
type Query struct {
	ID        string
	Address   string
	Location  *domain.Coordinates
	Timestamp *time.Time
	// Endpoint overrides the service default when set.
	Endpoint predict.Endpoint
}

// Service runs assessments.
type Service struct {
	predictor Predictor
	geocoder  domain.Geocoder
	locator   domain.Locator
	endpoint  predict.Endpoint
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService wires a Service. geocoder and locator may be nil, which
// disables address and current-position assessments respectively.
func NewService(p Predictor, g domain.Geocoder, l domain.Locator, endpoint predict.Endpoint, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if endpoint == "" {
		endpoint = predict.EndpointLocation
	}
	return &Service{
		predictor: p,
		geocoder:  g,
		locator:   l,
		endpoint:  endpoint,
		logger:    logger,
		metrics:   metrics,
	}
}

// Assess dispatches on the query's input.
func (s *Service) Assess(ctx context.Context, q Query) (domain.Assessment, error) {
	if q.Location != nil {
		return s.AssessLocation(ctx, q)
	}
	return s.AssessAddress(ctx, q)
}

// AssessRequest runs a pipeline request.
func (s *Service) AssessRequest(ctx context.Context, req domain.AssessmentRequest) (domain.Assessment, error) {
	q := Query{ID: req.ID, Address: req.Address, Timestamp: req.Timestamp}
	if c, ok := req.Coordinates(); ok {
		q.Location = &c
	}
	return s.Assess(ctx, q)
}

// AssessLocation predicts the flood risk at q.Location.
func (s *Service) AssessLocation(ctx context.Context, q Query) (domain.Assessment, error) {
	if q.Location == nil {
		return domain.Assessment{}, fmt.Errorf("%w: location required", domain.ErrInvalidCoordinates)
	}
	loc := *q.Location
	if err := loc.Validate(); err != nil {
		return domain.Assessment{}, err
	}

	ep := q.Endpoint
	if ep == "" {
		ep = s.endpoint
	}

	lp, err := s.predictor.PredictLocation(ctx, ep, domain.LocationQuery{Coordinates: loc, Timestamp: q.Timestamp})
	if err != nil {
		return domain.Assessment{}, err
	}

	a := domain.NewAssessment(q.ID, loc, lp, string(ep))
	a.Address = q.Address
	s.metrics.Assessments.WithLabelValues(string(a.Risk)).Inc()
	s.logger.Info("location assessed",
		"id", a.ID,
		"location", loc.String(),
		"risk", a.Risk,
		"confidence", a.Confidence,
		"endpoint", ep,
	)
	return a, nil
}

// AssessAddress geocodes q.Address and assesses the first match.
func (s *Service) AssessAddress(ctx context.Context, q Query) (domain.Assessment, error) {
	address := strings.TrimSpace(q.Address)
	if address == "" {
		return domain.Assessment{}, domain.ErrEmptyAddress
	}
	if s.geocoder == nil {
		return domain.Assessment{}, ErrGeocodingDisabled
	}

	geo, err := s.geocoder.ForwardGeocode(ctx, address)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if !geo.Found() {
		return domain.Assessment{}, fmt.Errorf("%w: %q", domain.ErrAddressNotFound, address)
	}

	q.Address = address
	q.Location = &domain.Coordinates{Latitude: geo.Lat, Longitude: geo.Lon}
	a, err := s.AssessLocation(ctx, q)
	if err != nil {
		return domain.Assessment{}, err
	}
	a.FormattedAddress = geo.FormattedAddress
	return a, nil
}

// AssessCurrentPosition locates the device and assesses its position. The
// address is filled in by reverse geocoding when possible.
func (s *Service) AssessCurrentPosition(ctx context.Context, q Query) (domain.Assessment, error) {
	if s.locator == nil {
		return domain.Assessment{}, domain.ErrGeolocationUnsupported
	}
	pos, err := s.locator.Locate(ctx)
	if err != nil {
		return domain.Assessment{}, err
	}

	q.Location = &pos.Coordinates
	a, err := s.AssessLocation(ctx, q)
	if err != nil {
		return domain.Assessment{}, err
	}

	if s.geocoder != nil {
		geo, err := s.geocoder.ReverseGeocode(ctx, pos.Latitude, pos.Longitude)
		if err != nil {
			s.logger.Warn("reverse geocode failed", "error", err, "location", pos.String())
		} else if geo.Found() {
			a.FormattedAddress = geo.FormattedAddress
		}
	}
	return a, nil
}

// DetectPotholes forwards a photo to the detection endpoint.
func (s *Service) DetectPotholes(ctx context.Context, up predict.Upload) (domain.DetectionResult, error) {
	res, err := s.predictor.DetectPotholes(ctx, up)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	sum := domain.Summarize(res.Detections)
	s.logger.Info("potholes detected", "file", up.Filename, "total", sum.Total, "high_confidence", sum.HighConfidence)
	return res, nil
}
