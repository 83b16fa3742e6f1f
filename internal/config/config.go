// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Keys are flat and mirror the koanf tags (env: VESSELTRAIL_<KEY>).
//   - New() returns a Config populated with defaults; Load layers file and env on top.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"
)

// Data source kinds.
const (
	SourceFile  = "file"
	SourceHTTP  = "http"
	SourceMongo = "mongo"
	SourceKafka = "kafka"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Source selects the upstream data source: file, http, mongo or kafka.
	Source string `koanf:"source"`

	// DataFile is the JSON document read by the file source.
	DataFile string `koanf:"data_file"`

	// UpstreamURL is the endpoint polled by the http source.
	UpstreamURL string `koanf:"upstream_url"`

	// FetchTimeoutMS bounds a single upstream fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// FetchLatencyMinMS and FetchLatencyMaxMS add simulated upstream latency. Zero disables it.
	FetchLatencyMinMS int `koanf:"fetch_latency_min_ms"`
	FetchLatencyMaxMS int `koanf:"fetch_latency_max_ms"`

	// CacheTTLMS keeps a loaded data set for this long. Zero disables caching.
	CacheTTLMS int `koanf:"cache_ttl_ms"`

	// QueueSize bounds the in-memory fetch queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of fetch workers.
	WorkerCount int `koanf:"worker_count"`

	// SessionTTLMS expires sessions idle for longer than this.
	SessionTTLMS int `koanf:"session_ttl_ms"`

	// DisplayTimezone is the IANA zone used for tooltip dates.
	DisplayTimezone string `koanf:"display_timezone"`

	MongoURI        string `koanf:"mongo_uri"`
	MongoDatabase   string `koanf:"mongo_database"`
	MongoCollection string `koanf:"mongo_collection"`
	MongoLimit      int    `koanf:"mongo_limit"`

	KafkaBrokers   []string `koanf:"kafka_brokers"`
	KafkaTopic     string   `koanf:"kafka_topic"`
	KafkaGroupID   string   `koanf:"kafka_group_id"`
	KafkaMaxPoints int      `koanf:"kafka_max_points"`

	// Color thresholds per metric: [low, high], ascending.
	PowerThresholds       []float64 `koanf:"power_thresholds"`
	SFOCThresholds        []float64 `koanf:"sfoc_thresholds"`
	ConsumptionThresholds []float64 `koanf:"consumption_thresholds"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		Source:                SourceFile,
		DataFile:              "data/mock-data.json",
		FetchTimeoutMS:        10_000,
		CacheTTLMS:            30_000,
		QueueSize:             1_024,
		WorkerCount:           runtime.NumCPU() * 2,
		SessionTTLMS:          int((30 * time.Minute).Milliseconds()),
		DisplayTimezone:       "UTC",
		MongoDatabase:         "vessels",
		MongoCollection:       "performance",
		MongoLimit:            50_000,
		KafkaTopic:            "vessel.telemetry",
		KafkaGroupID:          "vesseltrail",
		KafkaMaxPoints:        50_000,
		PowerThresholds:       []float64{106, 114},
		SFOCThresholds:        []float64{103, 110},
		ConsumptionThresholds: []float64{5, 15},
	}
}

// Validate checks invariants that the rest of the service relies on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.Source {
	case SourceFile:
		if c.DataFile == "" {
			return fmt.Errorf("%w: data_file must be set for source %q", ErrInvalidConfig, c.Source)
		}
	case SourceHTTP:
		if c.UpstreamURL == "" {
			return fmt.Errorf("%w: upstream_url must be set for source %q", ErrInvalidConfig, c.Source)
		}
	case SourceMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%w: mongo_uri must be set for source %q", ErrInvalidConfig, c.Source)
		}
	case SourceKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("%w: kafka_brokers and kafka_topic must be set for source %q", ErrInvalidConfig, c.Source)
		}
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownSource, c.Source)
	}
	if c.QueueSize <= 0 || c.WorkerCount <= 0 {
		return fmt.Errorf("%w: queue_size and worker_count must be positive", ErrInvalidConfig)
	}
	if c.FetchLatencyMinMS < 0 || c.FetchLatencyMaxMS < c.FetchLatencyMinMS {
		return fmt.Errorf("%w: fetch latency range [%d,%d] is invalid", ErrInvalidConfig,
			c.FetchLatencyMinMS, c.FetchLatencyMaxMS)
	}
	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("%w: display_timezone: %v", ErrInvalidConfig, err)
	}
	for name, th := range map[string][]float64{
		"power_thresholds":       c.PowerThresholds,
		"sfoc_thresholds":        c.SFOCThresholds,
		"consumption_thresholds": c.ConsumptionThresholds,
	} {
		if err := validThresholds(th); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

func validThresholds(th []float64) error {
	if len(th) != 2 {
		return fmt.Errorf("want 2 values, got %d", len(th))
	}
	for _, v := range th {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value %v", v)
		}
	}
	if th[0] >= th[1] {
		return fmt.Errorf("values must ascend, got %v", th)
	}
	return nil
}

// Location returns the display timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Duration converts a millisecond setting.
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// normalizeBrokers trims blanks that env splitting leaves behind.
func normalizeBrokers(in []string) []string {
	out := in[:0]
	for _, b := range in {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
