package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	CatalogPath string
	OutputPath  string
	IndexColumn string
	PathColumn  string
	Shuffle     bool
	ShuffleSeed *uint64

	// PrepInterval re-runs preparation periodically; zero runs once.
	PrepInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BatchSize       int

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	ClickHouseEnabled  bool
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseTable    string
	ClickHouseUser     string
	ClickHousePassword string
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

	prepInterval, err := parseDuration("PREP_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}

	seed, err := parseSeed()
	if err != nil {
		return nil, err
	}

	shuffle, err := parseBool("SHUFFLE", true)
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	clickhouseEnabled, err := parseBool("CLICKHOUSE_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CatalogPath:  os.Getenv("CATALOG_PATH"),
		OutputPath:   os.Getenv("OUTPUT_PATH"),
		IndexColumn:  sharedcfg.EnvOrDefault("INDEX_COLUMN", "iso-datetime"),
		PathColumn:   sharedcfg.EnvOrDefault("PATH_COLUMN", "ncdf_path"),
		Shuffle:      shuffle,
		ShuffleSeed:  seed,
		PrepInterval: prepInterval,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "sunset-catalog"),

		ClickHouseEnabled:  clickhouseEnabled,
		ClickHouseAddr:     sharedcfg.EnvOrDefault("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: sharedcfg.EnvOrDefault("CLICKHOUSE_DATABASE", "sunset"),
		ClickHouseTable:    sharedcfg.EnvOrDefault("CLICKHOUSE_TABLE", "catalog_prepared"),
		ClickHouseUser:     sharedcfg.EnvOrDefault("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
	}

	if cfg.CatalogPath == "" {
		return nil, errors.New("CATALOG_PATH is required")
	}
	if cfg.OutputPath != "" && !supportedOutput(cfg.OutputPath) {
		return nil, errors.New("OUTPUT_PATH must end in .parquet, .csv, .csv.gz or .csv.zst")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.OutputPath == "" && !cfg.KafkaEnabled && !cfg.ClickHouseEnabled {
		return nil, errors.New("no sink configured: set OUTPUT_PATH, KAFKA_ENABLED or CLICKHOUSE_ENABLED")
	}

	return cfg, nil
}

func supportedOutput(path string) bool {
	path = strings.ToLower(path)
	for _, ext := range []string{".parquet", ".csv", ".csv.gz", ".csv.zst"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseSeed() (*uint64, error) {
	s := os.Getenv("SHUFFLE_SEED")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUFFLE_SEED: %q", s)
	}
	return &v, nil
}
