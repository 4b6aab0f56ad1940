package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// BuildAPIBase is the prediction API origin fixed at build time with
// -ldflags "-X github.com/couchcryptid/delhiflow-client/internal/config.BuildAPIBase=...".
// It takes precedence over API_BASE.
var BuildAPIBase string

// DefaultAPIBase is used when neither BuildAPIBase nor API_BASE is set.
const DefaultAPIBase = "http://127.0.0.1:8000"

// Prediction endpoint names accepted by PREDICT_ENDPOINT.
const (
	EndpointLocation     = "location"
	EndpointLocationTime = "location_time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	APIBase         string
	PredictEndpoint string
	PredictTimeout  time.Duration

	// Nominatim geocoding configuration.
	GeocoderEnabled   bool
	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int

	MaxUploadBytes int64
	MaxDisplayPx   int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka assessment pipeline.
	PipelineEnabled    bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
	AssessConcurrency  int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	apiBase, err := ResolveAPIBase()
	if err != nil {
		return nil, err
	}

	predictTimeout, err := parsePositiveDuration("PREDICT_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := parsePositiveDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	maxUploadMB, err := parsePositiveInt("MAX_UPLOAD_MB", 10)
	if err != nil {
		return nil, err
	}

	maxDisplayPx, err := parsePositiveInt("MAX_DISPLAY_PX", 4096)
	if err != nil {
		return nil, err
	}

	concurrency, err := parsePositiveInt("ASSESS_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIBase:         apiBase,
		PredictEndpoint: sharedcfg.EnvOrDefault("PREDICT_ENDPOINT", EndpointLocation),
		PredictTimeout:  predictTimeout,

		GeocoderEnabled:   os.Getenv("GEOCODER_ENABLED") != "false",
		GeocoderURL:       strings.TrimRight(sharedcfg.EnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"), "/"),
		GeocoderUserAgent: sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "delhiflow-client/1.0"),
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: parseCacheSize(),

		MaxUploadBytes: int64(maxUploadMB) << 20,
		MaxDisplayPx:   maxDisplayPx,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PipelineEnabled:    os.Getenv("PIPELINE_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "risk-assessment-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "risk-assessments"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "delhiflow-client"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		AssessConcurrency:  concurrency,
	}

	if cfg.PredictEndpoint != EndpointLocation && cfg.PredictEndpoint != EndpointLocationTime {
		return nil, fmt.Errorf("invalid PREDICT_ENDPOINT %q: must be %q or %q", cfg.PredictEndpoint, EndpointLocation, EndpointLocationTime)
	}
	if cfg.PipelineEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

// ResolveAPIBase returns BuildAPIBase, else API_BASE, else DefaultAPIBase,
// without a trailing slash.
func ResolveAPIBase() (string, error) {
	base := BuildAPIBase
	if base == "" {
		base = sharedcfg.EnvOrDefault("API_BASE", DefaultAPIBase)
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")

	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid API_BASE %q: must be an http(s) origin", base)
	}
	return base, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
