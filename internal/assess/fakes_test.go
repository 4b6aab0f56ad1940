package assess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

type fakePredictor struct {
	detect  func(ctx context.Context, up predict.Upload) (domain.DetectionResult, error)
	predict func(ctx context.Context, ep predict.Endpoint, q domain.LocationQuery) (domain.LocationPrediction, error)

	predictCalls int
	lastEndpoint predict.Endpoint
	lastQuery    domain.LocationQuery
}

func (f *fakePredictor) DetectPotholes(ctx context.Context, up predict.Upload) (domain.DetectionResult, error) {
	return f.detect(ctx, up)
}

func (f *fakePredictor) PredictLocation(ctx context.Context, ep predict.Endpoint, q domain.LocationQuery) (domain.LocationPrediction, error) {
	f.predictCalls++
	f.lastEndpoint = ep
	f.lastQuery = q
	if f.predict != nil {
		return f.predict(ctx, ep, q)
	}
	return domain.LocationPrediction{
		Prediction: &domain.Prediction{Class: 1, Label: "Medium", Confidence: 64.5},
	}, nil
}

type fakeGeocoder struct {
	forward       domain.GeocodingResult
	reverse       domain.GeocodingResult
	err           error
	reverseErr    error
	lastAddress   string
	reverseCalled bool
}

func (f *fakeGeocoder) ForwardGeocode(_ context.Context, address string) (domain.GeocodingResult, error) {
	f.lastAddress = address
	return f.forward, f.err
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	f.reverseCalled = true
	return f.reverse, f.reverseErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
