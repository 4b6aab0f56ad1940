package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/observability"
)

// Endpoint selects a location prediction route.
type Endpoint string

const (
	EndpointLocation     Endpoint = "predict_location"
	EndpointLocationTime Endpoint = "predict_location_time"
)

const (
	serviceDetection  = "Detection"
	servicePrediction = "Prediction"

	pathDetect = "potholes/detect"

	maxResponseBytes = 16 << 20
)

// ParseEndpoint accepts "location", "location_time" or the full route names.
func ParseEndpoint(s string) (Endpoint, error) {
	switch s {
	case "location", string(EndpointLocation):
		return EndpointLocation, nil
	case "location_time", string(EndpointLocationTime):
		return EndpointLocationTime, nil
	default:
		return "", fmt.Errorf("unknown prediction endpoint %q", s)
	}
}

// Client talks to the prediction backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a prediction client for the API origin baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Upload is a photo submitted for detection.
type Upload struct {
	Filename string
	Content  io.Reader
}

type detectResponse struct {
	Detections json.RawMessage   `json:"detections"`
	ImageSize  *domain.ImageSize `json:"image_size"`
	Engine     string            `json:"engine"`
}

// DetectPotholes posts the photo as multipart field "image" and returns the
// normalized detections.
func (c *Client) DetectPotholes(ctx context.Context, up Upload) (domain.DetectionResult, error) {
	if up.Content == nil {
		return domain.DetectionResult{}, domain.ErrNoImage
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	name := filepath.Base(up.Filename)
	if up.Filename == "" {
		name = "image.jpg"
	}
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return domain.DetectionResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return domain.DetectionResult{}, fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.DetectionResult{}, fmt.Errorf("close multipart body: %w", err)
	}

	data, err := c.do(ctx, pathDetect, serviceDetection, mw.FormDataContentType(), &body)
	if err != nil {
		return domain.DetectionResult{}, err
	}

	var resp detectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.fail(pathDetect, "invalid_response")
		return domain.DetectionResult{}, fmt.Errorf("%s %w", serviceDetection, ErrInvalidResponse)
	}

	// A missing or non-array detections field means nothing was found.
	var raws []domain.RawDetection
	if trimmed := bytes.TrimSpace(resp.Detections); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			c.fail(pathDetect, "invalid_response")
			return domain.DetectionResult{}, fmt.Errorf("%s %w", serviceDetection, ErrInvalidResponse)
		}
	}
	dets, err := domain.NormalizeDetections(raws)
	if err != nil {
		c.fail(pathDetect, "invalid_response")
		return domain.DetectionResult{}, fmt.Errorf("%s %w: %w", serviceDetection, ErrInvalidResponse, err)
	}

	c.metrics.PredictRequests.WithLabelValues(pathDetect, "success").Inc()
	summary := domain.Summarize(dets)
	c.metrics.DetectionsTotal.Add(float64(summary.Total))
	c.metrics.DetectionsHigh.Add(float64(summary.HighConfidence))
	c.logger.Debug("potholes detected", "total", summary.Total, "high_confidence", summary.HighConfidence, "engine", resp.Engine)

	return domain.DetectionResult{Detections: dets, ImageSize: resp.ImageSize, Engine: resp.Engine}, nil
}

// PredictLocation asks the backend for the flood risk at q. The time-aware
// endpoint receives q.Timestamp, defaulting to now; the plain endpoint never
// sends one.
func (c *Client) PredictLocation(ctx context.Context, ep Endpoint, q domain.LocationQuery) (domain.LocationPrediction, error) {
	if ep != EndpointLocation && ep != EndpointLocationTime {
		return domain.LocationPrediction{}, fmt.Errorf("unknown prediction endpoint %q", ep)
	}
	if err := q.Validate(); err != nil {
		return domain.LocationPrediction{}, err
	}

	switch ep {
	case EndpointLocation:
		q.Timestamp = nil
	case EndpointLocationTime:
		if q.Timestamp == nil {
			now := domain.Now()
			q.Timestamp = &now
		}
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return domain.LocationPrediction{}, fmt.Errorf("encode location query: %w", err)
	}

	path := string(ep)
	data, err := c.do(ctx, path, servicePrediction, "application/json", bytes.NewReader(payload))
	if err != nil {
		return domain.LocationPrediction{}, err
	}

	var lp domain.LocationPrediction
	if err := json.Unmarshal(data, &lp); err != nil {
		c.fail(path, "invalid_response")
		return domain.LocationPrediction{}, fmt.Errorf("%s %w", servicePrediction, ErrInvalidResponse)
	}
	if lp.Prediction == nil {
		c.fail(path, "invalid_response")
		return domain.LocationPrediction{}, fmt.Errorf("%s %w: missing prediction", servicePrediction, ErrInvalidResponse)
	}

	c.metrics.PredictRequests.WithLabelValues(path, "success").Inc()
	return lp, nil
}

// do posts body to path and returns the non-empty 2xx response body.
func (c *Client) do(ctx context.Context, path, service, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.PredictDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		c.fail(path, "transport_error")
		c.logger.Warn("prediction request failed", "path", path, "error", err)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.fail(path, "transport_error")
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.fail(path, "api_error")
		apiErr := &APIError{Service: service, StatusCode: resp.StatusCode, Detail: errorDetail(data)}
		c.logger.Warn("prediction API error", "path", path, "status", resp.StatusCode, "detail", apiErr.Detail)
		return nil, apiErr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		c.fail(path, "invalid_response")
		return nil, fmt.Errorf("%s %w", service, ErrEmptyResponse)
	}
	return data, nil
}

func (c *Client) fail(path, outcome string) {
	c.metrics.PredictRequests.WithLabelValues(path, outcome).Inc()
}

// IsInvalidResponse reports whether err is a malformed success response.
func IsInvalidResponse(err error) bool {
	return errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrInvalidResponse)
}
