package assess

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/overlay"
)

// ErrSuperseded is returned by Detect when a newer Select or Reset happened
// while the request was in flight. The result is discarded.
var ErrSuperseded = errors.New("detection result superseded")

// Detector runs pothole detection on a photo.
type Detector interface {
	DetectPotholes(ctx context.Context, up predict.Upload) (domain.DetectionResult, error)
}

// photo is the currently selected image.
type photo struct {
	filename string
	data     []byte
	img      image.Image
	natural  domain.ImageSize
}

// SessionState is a snapshot of a PotholeSession.
type SessionState struct {
	Filename   string
	Natural    domain.ImageSize
	Display    domain.ImageSize
	Detections []domain.Detection
	Summary    domain.Summary
	Loading    bool
	Err        error
}

// PotholeSession holds one photo, its detections and the overlay drawn for
// them. Every state change re-renders the overlay. Selecting a new photo or
// resetting bumps a generation counter; detection results stamped with an
// older generation are dropped when they arrive.
type PotholeSession struct {
	mu         sync.Mutex
	detector   Detector
	renderer   *overlay.Renderer
	surface    *overlay.Surface
	generation uint64
	photo      *photo
	display    domain.ImageSize
	detections []domain.Detection
	loading    bool
	err        error
}

// NewPotholeSession creates an empty session.
func NewPotholeSession(d Detector, r *overlay.Renderer) *PotholeSession {
	return &PotholeSession{
		detector: d,
		renderer: r,
		surface:  overlay.NewSurface(),
	}
}

// Select decodes a new photo and shows it at the given display size. A zero
// width or height is derived from the aspect ratio. Previous detections and
// errors are cleared.
func (s *PotholeSession) Select(filename string, data []byte, width, height int) error {
	img, natural, err := overlay.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.photo = &photo{filename: filename, data: data, img: img, natural: natural}
	s.display = overlay.DisplaySize(natural, width, height)
	s.detections = nil
	s.loading = false
	s.err = nil
	s.render()
	return nil
}

// Resize changes the display size and re-renders.
func (s *PotholeSession) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return
	}
	s.display = overlay.DisplaySize(s.photo.natural, width, height)
	s.render()
}

// Detect sends the selected photo for detection and renders the result. The
// outstanding request is not aborted by Select or Reset; its result is
// discarded with ErrSuperseded instead.
func (s *PotholeSession) Detect(ctx context.Context) (domain.DetectionResult, error) {
	s.mu.Lock()
	if s.photo == nil {
		s.err = domain.ErrNoImage
		s.mu.Unlock()
		return domain.DetectionResult{}, domain.ErrNoImage
	}
	gen := s.generation
	up := predict.Upload{Filename: s.photo.filename, Content: bytes.NewReader(s.photo.data)}
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	res, err := s.detector.DetectPotholes(ctx, up)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return domain.DetectionResult{}, ErrSuperseded
	}
	s.loading = false
	if err != nil {
		s.err = err
		return domain.DetectionResult{}, err
	}
	s.detections = res.Detections
	s.render()
	return res, nil
}

// Reset forgets the photo and detections and clears the overlay.
func (s *PotholeSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.photo = nil
	s.detections = nil
	s.loading = false
	s.err = nil
	s.surface.Clear()
}

// State returns a snapshot of the session.
func (s *PotholeSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionState{
		Display:    s.display,
		Detections: append([]domain.Detection(nil), s.detections...),
		Summary:    domain.Summarize(s.detections),
		Loading:    s.loading,
		Err:        s.err,
	}
	if s.photo != nil {
		st.Filename = s.photo.filename
		st.Natural = s.photo.natural
	}
	return st
}

// Overlay returns a copy of the current overlay layer.
func (s *PotholeSession) Overlay() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.surface.Image()
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// Composite returns the photo at display size with the overlay on top.
func (s *PotholeSession) Composite() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return nil, domain.ErrNoImage
	}
	return overlay.Compose(s.photo.img, s.surface)
}

// render redraws the overlay. Callers hold mu.
func (s *PotholeSession) render() {
	frame := overlay.Frame{Display: s.display}
	if s.photo != nil {
		frame.Natural = s.photo.natural
	}
	s.renderer.Render(s.surface, frame, s.detections)
}
