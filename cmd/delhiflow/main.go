package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/delhiflow-client/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/delhiflow-client/internal/adapter/kafka"
	"github.com/couchcryptid/delhiflow-client/internal/adapter/nominatim"
	"github.com/couchcryptid/delhiflow-client/internal/adapter/predict"
	"github.com/couchcryptid/delhiflow-client/internal/adapter/ws"
	"github.com/couchcryptid/delhiflow-client/internal/assess"
	"github.com/couchcryptid/delhiflow-client/internal/config"
	"github.com/couchcryptid/delhiflow-client/internal/domain"
	"github.com/couchcryptid/delhiflow-client/internal/observability"
	"github.com/couchcryptid/delhiflow-client/internal/pipeline"
)

// alwaysReady is the readiness check when no pipeline runs.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	endpoint, err := predict.ParseEndpoint(cfg.PredictEndpoint)
	if err != nil {
		logger.Error("invalid prediction endpoint", "error", err)
		os.Exit(1)
	}
	predictor := predict.NewClient(cfg.APIBase, cfg.PredictTimeout, logger, metrics)
	logger.Info("prediction backend", "api_base", cfg.APIBase, "endpoint", endpoint)

	// Initialize geocoder (feature-flagged via GEOCODER_ENABLED).
	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		client := nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, logger, metrics)
		geocoder = nominatim.NewCachedGeocoder(client, cfg.GeocoderCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("nominatim geocoding enabled", "url", cfg.GeocoderURL, "cache_size", cfg.GeocoderCacheSize, "timeout", cfg.GeocoderTimeout)
	} else {
		logger.Info("nominatim geocoding disabled")
	}

	svc := assess.NewService(predictor, geocoder, nil, endpoint, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(logger, metrics)
	go hub.Run(ctx)

	var (
		ready  sharedobs.ReadinessChecker = alwaysReady{}
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)

	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(svc, logger)
		loader := pipeline.NewTeeLoader(writer, logger, hub)

		p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize).WithConcurrency(cfg.AssessConcurrency)
		ready = p

		// Start assessment pipeline.
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka pipeline disabled")
	}

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:           cfg.HTTPAddr,
		Ready:          ready,
		API:            svc,
		Stream:         hub,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxDisplayPx:   cfg.MaxDisplayPx,
		RequestTimeout: cfg.PredictTimeout,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
