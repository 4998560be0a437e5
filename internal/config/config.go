package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir         string
	OutputDir       string
	DefaultCity     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchWorkers int

	// Synthetic fallback when a city has no building data on disk.
	SyntheticFallback bool
	SyntheticSeed     uint64
	SyntheticCount    int

	DatasetCacheSize int
	DatasetCacheTTL  time.Duration

	// Optional Kafka result sink.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaResultsTopic  string
	BatchSize          int
	BatchFlushInterval time.Duration

	TracingEnabled     bool
	TracingExporter    string
	TracingServiceName string
	TracingSampleRatio float64
	OTLPEndpoint       string
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

	workers, err := parsePositiveInt("BATCH_WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	syntheticCount, err := parsePositiveInt("SYNTHETIC_COUNT", 100)
	if err != nil {
		return nil, err
	}

	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("SYNTHETIC_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SYNTHETIC_SEED")
	}

	cacheSize, err := parsePositiveInt("DATASET_CACHE_SIZE", 16)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("DATASET_CACHE_TTL", "30m"))
	if err != nil || cacheTTL <= 0 {
		return nil, errors.New("invalid DATASET_CACHE_TTL")
	}

	sampleRatio, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("TRACING_SAMPLE_RATIO", "1.0"), 64)
	if err != nil || sampleRatio < 0 || sampleRatio > 1 {
		return nil, errors.New("invalid TRACING_SAMPLE_RATIO: must be between 0 and 1")
	}

	cfg := &Config{
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data/plateau"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "outputs"),
		DefaultCity:     strings.ToLower(sharedcfg.EnvOrDefault("DEFAULT_CITY", "tokyo")),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BatchWorkers: workers,

		SyntheticFallback: parseBool("SYNTHETIC_FALLBACK", true),
		SyntheticSeed:     seed,
		SyntheticCount:    syntheticCount,

		DatasetCacheSize: cacheSize,
		DatasetCacheTTL:  cacheTTL,

		KafkaEnabled:       parseBool("KAFKA_ENABLED", false),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultsTopic:  sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "flood-results"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		TracingEnabled:     parseBool("TRACING_ENABLED", false),
		TracingExporter:    strings.ToLower(sharedcfg.EnvOrDefault("TRACING_EXPORTER", "stdout")),
		TracingServiceName: sharedcfg.EnvOrDefault("TRACING_SERVICE_NAME", "flood-impact-engine"),
		TracingSampleRatio: sampleRatio,
		OTLPEndpoint:       os.Getenv("OTLP_ENDPOINT"),
	}

	if cfg.DefaultCity == "" {
		return nil, errors.New("DEFAULT_CITY is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaResultsTopic == "" {
			return nil, errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	switch cfg.TracingExporter {
	case "stdout":
	case "otlp":
		if cfg.TracingEnabled && cfg.OTLPEndpoint == "" {
			return nil, errors.New("OTLP_ENDPOINT is required when TRACING_EXPORTER is otlp")
		}
	default:
		return nil, fmt.Errorf("invalid TRACING_EXPORTER %q: want stdout or otlp", cfg.TracingExporter)
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
