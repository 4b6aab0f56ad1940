// Command potholes sends a road photo to the detection backend, prints the
// detections and optionally writes the photo with the boxes drawn on it.
//
// Usage:
//
//	go run ./cmd/potholes -image road.jpg -display 800x0 -out annotated.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/assess"
	"github.com/couchcryptid/delhiflow-client/internal/config"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/observability"
	"github.com/couchcryptid/delhiflow-client/internal/overlay"
)

func main() {
	imagePath := flag.String("image", "", "path to a JPEG or PNG road photo")
	display := flag.String("display", "", "display size WxH; 0 for either side keeps the aspect ratio (default natural size)")
	out := flag.String("out", "", "write the annotated photo as PNG to this path")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(*imagePath, *display, *out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(imagePath, display, out string) error {
	if imagePath == "" {
		return domain.ErrNoImage
	}
	width, height, err := parseDisplay(display)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewCLILogger(cfg, os.Stderr)
	metrics := observability.NewMetrics()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	client := predict.NewClient(cfg.APIBase, cfg.PredictTimeout, logger, metrics)
	session := assess.NewPotholeSession(client, overlay.NewRenderer(overlay.DefaultStyle()))
	if err := session.Select(imagePath, data, width, height); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := session.Detect(ctx)
	if err != nil {
		return err
	}

	st := session.State()
	fmt.Printf("Detected %d pothole(s), %d high confidence\n", st.Summary.Total, st.Summary.HighConfidence)
	if res.Engine != "" {
		fmt.Printf("Engine: %s\n", res.Engine)
	}
	for i, d := range st.Detections {
		unit := "px"
		if d.Relative {
			unit = "of frame"
		}
		fmt.Printf("%2d. %-16s x=%.3g y=%.3g w=%.3g h=%.3g (%s)\n", i+1, d.Caption(), d.Rect.X, d.Rect.Y, d.Rect.Width, d.Rect.Height, unit)
	}

	if out == "" {
		return nil
	}
	img, err := session.Composite()
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := overlay.EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	fmt.Printf("Annotated photo written to %s (%dx%d)\n", out, st.Display.Width, st.Display.Height)
	return nil
}

// parseDisplay reads "WxH". An empty value keeps the natural size.
func parseDisplay(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, errors.New("display must be WxH, e.g. 800x600 or 800x0")
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w < 0 {
		return 0, 0, fmt.Errorf("invalid display width %q", ws)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, 0, fmt.Errorf("invalid display height %q", hs)
	}
	return w, h, nil
}
