package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"

	"github.com/nfnt/resize"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

// ErrEmptyFrame is returned when compositing onto a zero-sized display.
var ErrEmptyFrame = errors.New("overlay: display size is empty")

// Decode reads a JPEG or PNG photo and reports its natural size.
func Decode(r io.Reader) (image.Image, domain.ImageSize, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, domain.ImageSize{}, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	return img, domain.ImageSize{Width: b.Dx(), Height: b.Dy()}, nil
}

// DisplaySize resolves the size a photo is shown at. A zero width or height
// is derived from the other using the natural aspect ratio; both zero keeps
// the natural size.
func DisplaySize(natural domain.ImageSize, width, height int) domain.ImageSize {
	switch {
	case width > 0 && height > 0:
		return domain.ImageSize{Width: width, Height: height}
	case natural.Empty():
		return domain.ImageSize{Width: width, Height: height}
	case width > 0:
		return domain.ImageSize{Width: width, Height: round(float64(width) * float64(natural.Height) / float64(natural.Width))}
	case height > 0:
		return domain.ImageSize{Width: round(float64(height) * float64(natural.Width) / float64(natural.Height)), Height: height}
	default:
		return natural
	}
}

// Compose scales photo to the surface size and draws the surface over it.
func Compose(photo image.Image, surface *Surface) (*image.RGBA, error) {
	size := surface.Size()
	if size.Empty() {
		return nil, ErrEmptyFrame
	}
	scaled := resize.Resize(uint(size.Width), uint(size.Height), photo, resize.Lanczos3)

	out := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	draw.Draw(out, out.Bounds(), surface.Image(), image.Point{}, draw.Over)
	return out, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
