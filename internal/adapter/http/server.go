package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/assess"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/overlay"
)

const (
	imageField = "image"

	defaultMaxDisplayPx = 4096
)

// API is the assessment surface exposed over HTTP.
type API interface {
	Assess(ctx context.Context, q assess.Query) (domain.Assessment, error)
	DetectPotholes(ctx context.Context, up predict.Upload) (domain.DetectionResult, error)
}

// Stream publishes completed assessments and serves stream subscribers.
type Stream interface {
	http.Handler
	Publish(a domain.Assessment)
}

// Options configures a Server. Stream may be nil.
type Options struct {
	Addr           string
	Ready          sharedobs.ReadinessChecker
	API            API
	Stream         Stream
	MaxUploadBytes int64
	// MaxDisplayPx bounds each side of an overlay's display size.
	MaxDisplayPx   int
	RequestTimeout time.Duration
}

// Server exposes the assessment API alongside health, readiness and metrics.
type Server struct {
	httpServer *http.Server
	api        API
	stream     Stream
	renderer   *overlay.Renderer
	maxUpload  int64
	maxDisplay int
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API, /healthz, /readyz and /metrics routes.
func NewServer(opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	writeTimeout := 10 * time.Second
	if opts.RequestTimeout > 0 {
		writeTimeout += opts.RequestTimeout
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		api:       opts.API,
		stream:    opts.Stream,
		renderer:  overlay.NewRenderer(overlay.DefaultStyle()),
		maxUpload:  opts.MaxUploadBytes,
		maxDisplay: opts.MaxDisplayPx,
		logger:     logger,
	}
	if s.maxDisplay <= 0 {
		s.maxDisplay = defaultMaxDisplayPx
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(opts.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/potholes/detect", s.handleDetect)
	mux.HandleFunc("POST /v1/potholes/overlay", s.handleOverlay)
	mux.HandleFunc("POST /v1/risk/location", s.handleRisk(false))
	mux.HandleFunc("POST /v1/risk/address", s.handleRisk(true))
	if s.stream != nil {
		mux.Handle("GET /v1/stream", s.stream)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type detectResponse struct {
	domain.DetectionResult
	Summary  domain.Summary `json:"summary"`
	Captions []string       `json:"captions"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.readImage(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.api.DetectPotholes(r.Context(), predict.Upload{Filename: filename, Content: bytes.NewReader(data)})
	if err != nil {
		s.writeError(w, err)
		return
	}

	captions := make([]string, len(res.Detections))
	for i, d := range res.Detections {
		captions[i] = d.Caption()
	}
	sharedobs.WriteJSON(w, http.StatusOK, detectResponse{
		DetectionResult: res,
		Summary:         domain.Summarize(res.Detections),
		Captions:        captions,
	})
}

// handleOverlay detects potholes and returns the photo at display size with
// the boxes drawn on it as PNG.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.readImage(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	width, err := formInt(r, "display_width")
	if err != nil {
		s.writeError(w, err)
		return
	}
	height, err := formInt(r, "display_height")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.checkDisplay(data, width, height); err != nil {
		s.writeError(w, err)
		return
	}

	session := assess.NewPotholeSession(s.api, s.renderer)
	if err := session.Select(filename, data, width, height); err != nil {
		s.writeError(w, &badRequestError{err: err})
		return
	}
	res, err := session.Detect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	img, err := session.Composite()
	if err != nil {
		s.writeError(w, &badRequestError{err: err})
		return
	}

	sum := domain.Summarize(res.Detections)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Detections-Total", strconv.Itoa(sum.Total))
	w.Header().Set("X-Detections-High-Confidence", strconv.Itoa(sum.HighConfidence))
	w.WriteHeader(http.StatusOK)
	if err := overlay.EncodePNG(w, img); err != nil {
		s.logger.Warn("write overlay failed", "error", err)
	}
}

type riskRequest struct {
	ID        string     `json:"id"`
	Address   string     `json:"address"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp *time.Time `json:"timestamp"`
	Endpoint  string     `json:"endpoint"`
}

func (s *Server) handleRisk(byAddress bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req riskRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			s.writeError(w, &badRequestError{err: fmt.Errorf("decode request: %w", err)})
			return
		}

		q := assess.Query{ID: req.ID, Timestamp: req.Timestamp}
		if req.Endpoint != "" {
			ep, err := predict.ParseEndpoint(req.Endpoint)
			if err != nil {
				s.writeError(w, &badRequestError{err: err})
				return
			}
			q.Endpoint = ep
		}

		if byAddress {
			q.Address = req.Address
			if q.Address == "" {
				s.writeError(w, domain.ErrEmptyAddress)
				return
			}
		} else {
			if req.Latitude == nil || req.Longitude == nil {
				s.writeError(w, fmt.Errorf("%w: latitude and longitude required", domain.ErrInvalidCoordinates))
				return
			}
			q.Location = &domain.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
		}

		a, err := s.api.Assess(r.Context(), q)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if s.stream != nil {
			s.stream.Publish(a)
		}
		sharedobs.WriteJSON(w, http.StatusOK, a)
	}
}

// readImage reads the multipart image field into memory.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	if s.maxUpload > 0 {
		if r.ContentLength > s.maxUpload {
			return "", nil, &http.MaxBytesError{Limit: s.maxUpload}
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	file, hdr, err := r.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return "", nil, err
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return "", nil, domain.ErrNoImage
		default:
			return "", nil, &badRequestError{err: fmt.Errorf("read upload: %w", err)}
		}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, &badRequestError{err: fmt.Errorf("read upload: %w", err)}
	}
	if len(data) == 0 {
		return "", nil, domain.ErrNoImage
	}
	return hdr.Filename, data, nil
}

// checkDisplay rejects display sizes, requested or derived from the photo's
// aspect ratio, with a side above the configured maximum.
func (s *Server) checkDisplay(data []byte, width, height int) error {
	if width > s.maxDisplay || height > s.maxDisplay {
		return &badRequestError{err: fmt.Errorf("display size %dx%d exceeds %d px per side", width, height, s.maxDisplay)}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return &badRequestError{err: fmt.Errorf("decode image: %w", err)}
	}
	d := overlay.DisplaySize(domain.ImageSize{Width: cfg.Width, Height: cfg.Height}, width, height)
	if d.Width > s.maxDisplay || d.Height > s.maxDisplay {
		return &badRequestError{err: fmt.Errorf("display size %dx%d exceeds %d px per side", d.Width, d.Height, s.maxDisplay)}
	}
	return nil
}

func formInt(r *http.Request, key string) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &badRequestError{err: fmt.Errorf("invalid %s %q", key, v)}
	}
	return n, nil
}
