// Package telemetrygen produces synthetic vessel telemetry for local runs:
// a JSON document for the file source, or a Kafka stream for the kafka source.
package telemetrygen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/pkg/logger"
)

// ErrNoSink is returned when neither an output file nor brokers are configured.
var ErrNoSink = errors.New("no output file or kafka brokers configured")

// Run generates the series and delivers it to every configured sink.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	return run(ctx, cfg, nil)
}

func run(ctx context.Context, cfg *Config, pub *Publisher) (*Stats, error) {
	if cfg.Output == "" && len(cfg.Brokers) == 0 && pub == nil {
		return nil, ErrNoSink
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	stats := &Stats{StartTime: time.Now()}
	log.Info(ctx, "generating telemetry",
		logger.Int("vessels", cfg.Vessels),
		logger.Int("points", cfg.Points),
		logger.Duration("interval", cfg.Interval),
		logger.Any("seed", cfg.Seed))

	points := NewGenerator(*cfg, catalog.Default()).Generate()
	stats.PointsGenerated = len(points)

	if cfg.Output != "" {
		if err := WriteFile(cfg.Output, points); err != nil {
			return stats, err
		}
		stats.PointsWritten = len(points)
		log.Info(ctx, "telemetry written", logger.String("file", cfg.Output), logger.Int("points", len(points)))
	}

	if pub == nil && len(cfg.Brokers) > 0 {
		pub = NewPublisher(cfg.Brokers, cfg.Topic, cfg.BatchSize)
	}
	if pub != nil {
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn(ctx, "closing kafka writer", logger.Error(err))
			}
		}()
		sent, err := pub.Publish(ctx, points)
		stats.PointsPublished = sent
		if err != nil {
			return stats, fmt.Errorf("publish: %w", err)
		}
		log.Info(ctx, "telemetry published",
			logger.String("topic", cfg.Topic),
			logger.String("run_id", pub.RunID()),
			logger.Int("points", sent))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	return stats, nil
}
