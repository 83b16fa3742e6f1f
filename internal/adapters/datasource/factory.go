package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/vesseltrail/internal/config"
	"github.com/okian/vesseltrail/pkg/logger"
)

// Stack is the assembled source chain plus the handles main needs to manage.
type Stack struct {
	Source Source
	// Kafka is set when the source is a Kafka consumer; its Run must be started.
	Kafka *KafkaSource
	// Cache is set when caching is enabled.
	Cache *Cached

	closers []func(context.Context) error
}

// Close releases upstream connections.
func (s *Stack) Close(ctx context.Context) error {
	var errs []error
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the upstream source named by cfg.Source and wraps it as
// Instrumented(Delayed(Cached(base))).
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Stack, error) {
	st := &Stack{}
	var base Source
	switch cfg.Source {
	case config.SourceFile:
		base = NewFileSource(cfg.DataFile)
	case config.SourceHTTP:
		base = NewHTTPSource(cfg.UpstreamURL, nil)
	case config.SourceMongo:
		m, err := NewMongoSource(ctx, MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
			Limit:      int64(cfg.MongoLimit),
		}, log)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, m.Close)
		base = m
	case config.SourceKafka:
		k, err := NewKafkaSource(KafkaConfig{
			Brokers:   cfg.KafkaBrokers,
			Topic:     cfg.KafkaTopic,
			GroupID:   cfg.KafkaGroupID,
			MaxPoints: cfg.KafkaMaxPoints,
		}, log)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return k.Close() })
		st.Kafka = k
		base = k
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidArgs, cfg.Source)
	}

	src := base
	if cfg.CacheTTLMS > 0 {
		st.Cache = NewCached(src, config.Duration(cfg.CacheTTLMS), MetricsObserver(),
			WithLoadTimeout(config.Duration(cfg.FetchTimeoutMS)))
		src = st.Cache
	}
	if cfg.FetchLatencyMaxMS > 0 {
		src = NewDelayed(src, config.Duration(cfg.FetchLatencyMinMS), config.Duration(cfg.FetchLatencyMaxMS))
	}
	st.Source = NewInstrumented(src)
	return st, nil
}
