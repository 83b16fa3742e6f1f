package service

import (
	"time"

	"github.com/okian/vesseltrail/internal/adapters/datasource"
	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithSource sets the upstream telemetry source.
func WithSource(src datasource.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithCatalog sets the filter choices.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithThresholds overrides the band thresholds of one metric.
func WithThresholds(m colors.Metric, low, high float64) Option {
	return func(s *Service) {
		s.classifierOpts = append(s.classifierOpts, colors.WithThresholds(m, low, high))
	}
}

// WithLocation sets the zone tooltips are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithWorkerCount sets the number of fetch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the fetch queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithFetchTimeout bounds every upstream load.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithSessionTTL sets how long idle sessions are kept. Zero keeps them forever.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sessionTTL = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for default criteria.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
