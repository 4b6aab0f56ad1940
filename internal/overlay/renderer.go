package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

// Frame describes the image a set of detections belongs to.
type Frame struct {
	Natural domain.ImageSize // resolution of the decoded photo
	Display domain.ImageSize // size the photo is shown at
}

// Box is a detection mapped onto display pixels.
type Box struct {
	Rect    domain.Rect
	Caption string
}

// Layout maps detections onto display coordinates. Relative detections are
// multiplied by the display size, absolute ones by display/natural. Boxes are
// not clamped to the display. Absolute detections are dropped when the
// natural size is unknown.
func Layout(frame Frame, dets []domain.Detection) []Box {
	if frame.Display.Empty() {
		return nil
	}
	dw, dh := float64(frame.Display.Width), float64(frame.Display.Height)

	var scaleX, scaleY float64
	absolute := !frame.Natural.Empty()
	if absolute {
		scaleX = dw / float64(frame.Natural.Width)
		scaleY = dh / float64(frame.Natural.Height)
	}

	boxes := make([]Box, 0, len(dets))
	for _, d := range dets {
		sx, sy := scaleX, scaleY
		if d.Relative {
			sx, sy = dw, dh
		} else if !absolute {
			continue
		}
		boxes = append(boxes, Box{
			Rect: domain.Rect{
				X:      d.Rect.X * sx,
				Y:      d.Rect.Y * sy,
				Width:  d.Rect.Width * sx,
				Height: d.Rect.Height * sy,
			},
			Caption: d.Caption(),
		})
	}
	return boxes
}

// Style holds the drawing parameters of a box and its label tag.
type Style struct {
	LineWidth int
	Stroke    color.Color
	Fill      color.Color
	TagFill   color.Color
	Text      color.Color
	Padding   int
	// LineHeight is the text line box inside the tag, excluding padding.
	LineHeight int
	Face       font.Face
}

// DefaultStyle is a pink box with a dark label tag and white text.
func DefaultStyle() Style {
	return Style{
		LineWidth:  3,
		Stroke:     color.NRGBA{R: 236, G: 72, B: 153, A: 242},
		Fill:       color.NRGBA{R: 236, G: 72, B: 153, A: 46},
		TagFill:    color.NRGBA{R: 17, G: 24, B: 39, A: 230},
		Text:       color.White,
		Padding:    4,
		LineHeight: 16,
		Face:       basicfont.Face7x13,
	}
}

// TagHeight is the full height of a label tag.
func (s Style) TagHeight() int {
	return s.LineHeight + 2*s.Padding
}

// Renderer draws detections onto a Surface.
type Renderer struct {
	style Style
}

// NewRenderer returns a Renderer using style.
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Render fits surface to the display size, clears it and draws every
// detection in order. An empty list leaves a cleared surface.
func (r *Renderer) Render(surface *Surface, frame Frame, dets []domain.Detection) {
	if surface == nil {
		return
	}
	surface.Fit(frame.Display.Width, frame.Display.Height)
	surface.Clear()
	if frame.Display.Empty() {
		return
	}
	for _, b := range Layout(frame, dets) {
		r.drawBox(surface.Image(), b)
	}
}

func (r *Renderer) drawBox(dst *image.RGBA, b Box) {
	st := r.style
	rect := pixelRect(b.Rect)

	draw.Draw(dst, rect, image.NewUniform(st.Fill), image.Point{}, draw.Over)
	strokeRect(dst, rect, st.LineWidth, image.NewUniform(st.Stroke))

	if b.Caption == "" {
		return
	}
	dr := &font.Drawer{Dst: dst, Src: image.NewUniform(st.Text), Face: st.Face}
	tagW := dr.MeasureString(b.Caption).Ceil() + 2*st.Padding
	tagH := st.TagHeight()
	x := rect.Min.X
	y := rect.Min.Y

	tag := image.Rect(x, max(0, y-tagH), x+tagW, max(0, y-tagH)+tagH)
	draw.Draw(dst, tag, image.NewUniform(st.TagFill), image.Point{}, draw.Over)

	dr.Dot = fixed.Point26_6{X: fixed.I(x + st.Padding), Y: fixed.I(max(10, y-tagH/2))}
	dr.DrawString(b.Caption)
}

// strokeRect draws a border of width lw centered on the edges of r. The four
// bands do not overlap so translucent strokes composite evenly.
func strokeRect(dst draw.Image, r image.Rectangle, lw int, src image.Image) {
	if lw <= 0 {
		return
	}
	lo := lw / 2
	hi := lw - lo
	bands := []image.Rectangle{
		band(r.Min.X-lo, r.Min.Y-lo, r.Max.X+hi, r.Min.Y+hi),
		band(r.Min.X-lo, r.Max.Y-lo, r.Max.X+hi, r.Max.Y+hi),
		band(r.Min.X-lo, r.Min.Y+hi, r.Min.X+hi, r.Max.Y-lo),
		band(r.Max.X-lo, r.Min.Y+hi, r.Max.X+hi, r.Max.Y-lo),
	}
	for _, band := range bands {
		if band.Empty() {
			continue
		}
		draw.Draw(dst, band, src, image.Point{}, draw.Over)
	}
}

// band builds a rectangle without canonicalizing it, so inverted bands of
// thin boxes report Empty.
func band(x0, y0, x1, y1 int) image.Rectangle {
	return image.Rectangle{Min: image.Pt(x0, y0), Max: image.Pt(x1, y1)}
}

func pixelRect(r domain.Rect) image.Rectangle {
	return image.Rect(
		round(r.X), round(r.Y),
		round(r.X+r.Width), round(r.Y+r.Height),
	)
}

func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
