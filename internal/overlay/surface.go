package overlay

import (
	"image"
	"image/draw"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

// Surface is the transparent layer boxes are drawn on. Its pixel size tracks
// the display size of the image underneath.
type Surface struct {
	img *image.RGBA
}

// NewSurface returns an empty surface. It is sized on first Fit.
func NewSurface() *Surface {
	return &Surface{img: image.NewRGBA(image.Rectangle{})}
}

// Fit resizes the surface to w×h. Resizing discards previous content.
// Non-positive dimensions leave an empty surface.
func (s *Surface) Fit(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if b := s.img.Bounds(); b.Dx() == w && b.Dy() == h {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, w, h))
}

// Clear resets every pixel to transparent.
func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Size returns the current pixel size.
func (s *Surface) Size() domain.ImageSize {
	b := s.img.Bounds()
	return domain.ImageSize{Width: b.Dx(), Height: b.Dy()}
}

// Image exposes the backing image. Callers must not retain it across Fit.
func (s *Surface) Image() *image.RGBA {
	return s.img
}
