// Command risk asks the prediction backend for the flood risk at an address
// or a coordinate pair.
//
// Usage:
//
//	go run ./cmd/risk -address "ITO, New Delhi"
//	go run ./cmd/risk -lat 28.6139 -lon 77.2090 -endpoint location_time -at 2025-08-14T09:30:00+05:30
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/delhiflow-client/internal/adapter/nominatim"
	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/assess"
	"github.com/couchcryptid/delhiflow-client/internal/config"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/observability"
)

type options struct {
	address  string
	lat      string
	lon      string
	endpoint string
	at       string
}

func main() {
	var opts options
	flag.StringVar(&opts.address, "address", "", "address to geocode and assess")
	flag.StringVar(&opts.lat, "lat", "", "latitude in decimal degrees")
	flag.StringVar(&opts.lon, "lon", "", "longitude in decimal degrees")
	flag.StringVar(&opts.endpoint, "endpoint", "", "prediction endpoint: location or location_time (default PREDICT_ENDPOINT)")
	flag.StringVar(&opts.at, "at", "", "RFC 3339 time to predict for (location_time only, default now)")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(opts); err != nil {
		var pe *domain.PositionError
		if errors.As(err, &pe) || errors.Is(err, domain.ErrGeolocationUnsupported) {
			fmt.Fprintln(os.Stderr, domain.PositionMessage(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewCLILogger(cfg, os.Stderr)
	metrics := observability.NewMetrics()

	name := opts.endpoint
	if name == "" {
		name = cfg.PredictEndpoint
	}
	endpoint, err := predict.ParseEndpoint(name)
	if err != nil {
		return err
	}

	q := assess.Query{Endpoint: endpoint, Address: opts.address}
	if opts.at != "" {
		ts, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
		q.Timestamp = &ts
	}

	var locator domain.Locator
	if opts.lat != "" || opts.lon != "" {
		pos, err := parsePosition(opts.lat, opts.lon)
		if err != nil {
			return err
		}
		locator = domain.StaticLocator{Position: &pos}
	} else if opts.address == "" {
		return errors.New("either -address or -lat/-lon is required")
	}

	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		client := nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, logger, metrics)
		geocoder = nominatim.NewCachedGeocoder(client, cfg.GeocoderCacheSize, metrics)
	}

	predictor := predict.NewClient(cfg.APIBase, cfg.PredictTimeout, logger, metrics)
	svc := assess.NewService(predictor, geocoder, locator, endpoint, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var a domain.Assessment
	if locator != nil {
		a, err = svc.AssessCurrentPosition(ctx, q)
	} else {
		a, err = svc.AssessAddress(ctx, q)
	}
	if err != nil {
		return err
	}

	printAssessment(a)
	return nil
}

func parsePosition(lat, lon string) (domain.Position, error) {
	if lat == "" || lon == "" {
		return domain.Position{}, fmt.Errorf("%w: both -lat and -lon are required", domain.ErrInvalidCoordinates)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: latitude %q", domain.ErrInvalidCoordinates, lat)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("%w: longitude %q", domain.ErrInvalidCoordinates, lon)
	}
	c := domain.Coordinates{Latitude: la, Longitude: lo}
	if err := c.Validate(); err != nil {
		return domain.Position{}, err
	}
	return domain.Position{Coordinates: c, Timestamp: time.Now()}, nil
}

func printAssessment(a domain.Assessment) {
	fmt.Printf("Location:   %s\n", a.Location)
	switch {
	case a.FormattedAddress != "":
		fmt.Printf("Address:    %s\n", a.FormattedAddress)
	case a.Address != "":
		fmt.Printf("Address:    %s\n", a.Address)
	}
	fmt.Printf("Risk:       %s (%.1f%% confidence)\n", a.Risk, a.Confidence)
	if a.Advisory != "" {
		fmt.Printf("Advisory:   %s\n", a.Advisory)
	}
	if f := a.DerivedFeatures; f != nil {
		fmt.Printf("Features:   elevation %.1f m, road density %.2f, rain %.1f mm (%.1f mm past 3h), drain level %.2f, soil moisture %.2f\n",
			f.Elevation, f.RoadDensity, f.RainMM, f.RainPast3h, f.DrainWaterLevel, f.SoilMoisture)
	}
	if t := a.TimeUsed; t != nil {
		fmt.Printf("Time used:  hour %d, month %d, weekday %d\n", t.HourOfDay, t.Month, t.DayOfWeek)
	}
	fmt.Printf("Endpoint:   %s\n", a.Endpoint)
}
