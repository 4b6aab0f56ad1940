package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestDisplaySize(t *testing.T) {
	natural := domain.ImageSize{Width: 1600, Height: 1000}

	assert.Equal(t, domain.ImageSize{Width: 800, Height: 400}, DisplaySize(natural, 800, 400))
	assert.Equal(t, domain.ImageSize{Width: 800, Height: 500}, DisplaySize(natural, 800, 0))
	assert.Equal(t, domain.ImageSize{Width: 320, Height: 200}, DisplaySize(natural, 0, 200))
	assert.Equal(t, natural, DisplaySize(natural, 0, 0))
	assert.Equal(t, domain.ImageSize{Width: 800}, DisplaySize(domain.ImageSize{}, 800, 0))
}

func TestCompose(t *testing.T) {
	photo := solid(100, 50, color.RGBA{B: 255, A: 255})

	s := NewSurface()
	frame := Frame{
		Natural: domain.ImageSize{Width: 100, Height: 50},
		Display: domain.ImageSize{Width: 50, Height: 25},
	}
	NewRenderer(DefaultStyle()).Render(s, frame, []domain.Detection{
		{Rect: domain.Rect{X: 0.5, Y: 0.5, Width: 0.4, Height: 0.4}, Relative: true},
	})

	out, err := Compose(photo, s)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 25), out.Bounds())

	bg := out.RGBAAt(2, 22)
	assert.InDelta(t, 255, int(bg.B), 2)
	assert.InDelta(t, 0, int(bg.R), 2)

	// the bottom stroke of the box sits on the last row, below the tag
	edge := out.RGBAAt(35, 24)
	assert.Greater(t, edge.R, uint8(200))
}

func TestCompose_EmptySurface(t *testing.T) {
	_, err := Compose(solid(10, 10, color.Black), NewSurface())
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestEncodePNG_Decode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, solid(7, 3, color.White)))

	_, size, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, domain.ImageSize{Width: 7, Height: 3}, size)

	_, _, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
