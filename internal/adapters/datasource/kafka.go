package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/vesseltrail/internal/domain/dedupe"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/pkg/logger"
	"github.com/okian/vesseltrail/pkg/metrics"
)

const (
	defaultKafkaPoll      = 5 * time.Second
	defaultKafkaMaxPoints = 50_000
)

// KafkaConfig captures the consumer settings.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	MaxPoints   int
	PollTimeout time.Duration
}

// kafkaReader is the slice of *kafka.Reader the consumer needs.
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PointBuffer keeps the most recent points, evicting the oldest arrival once
// full. Safe for concurrent use.
type PointBuffer struct {
	mu     sync.RWMutex
	max    int
	points []model.DataPoint
}

// NewPointBuffer creates a buffer; max <= 0 falls back to the default capacity.
func NewPointBuffer(max int) *PointBuffer {
	if max <= 0 {
		max = defaultKafkaMaxPoints
	}
	return &PointBuffer{max: max}
}

// Append stores dp and reports the buffer depth and whether the oldest point was evicted.
func (b *PointBuffer) Append(dp model.DataPoint) (count int, evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.points) >= b.max {
		copy(b.points, b.points[1:])
		b.points[len(b.points)-1] = dp
		return len(b.points), true
	}
	b.points = append(b.points, dp)
	return len(b.points), false
}

// Len returns the buffer depth.
func (b *PointBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.points)
}

// Snapshot returns a copy ordered by timestamp. Ties keep arrival order.
func (b *PointBuffer) Snapshot() []model.DataPoint {
	b.mu.RLock()
	out := make([]model.DataPoint, len(b.points))
	copy(out, b.points)
	b.mu.RUnlock()

	slices.SortStableFunc(out, func(a, c model.DataPoint) int {
		return a.Timestamp.Compare(c.Timestamp.Time)
	})
	return out
}

// KafkaSource consumes telemetry messages into a bounded buffer; Load serves
// the buffered series.
type KafkaSource struct {
	cfg    KafkaConfig
	reader kafkaReader
	buf    *PointBuffer
	seen   dedupe.Deduper
	log    logger.Logger
}

// NewKafkaSource builds a consumer-group reader. Run must be started for the
// buffer to fill.
func NewKafkaSource(cfg KafkaConfig, log logger.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: at least one broker is required", ErrInvalidArgs)
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("%w: topic must not be empty", ErrInvalidArgs)
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, fmt.Errorf("%w: consumer group must not be empty", ErrInvalidArgs)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaSourceWithReader(cfg, reader, log), nil
}

func newKafkaSourceWithReader(cfg KafkaConfig, r kafkaReader, log logger.Logger) *KafkaSource {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultKafkaPoll
	}
	buf := NewPointBuffer(cfg.MaxPoints)
	return &KafkaSource{
		cfg:    cfg,
		reader: r,
		buf:    buf,
		seen:   dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(buf.max)),
		log:    log,
	}
}

// Name implements Source.
func (s *KafkaSource) Name() string { return "kafka" }

// Load implements Source.
func (s *KafkaSource) Load(ctx context.Context) ([]model.DataPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.buf.Snapshot(), nil
}

// Buffer exposes the backing buffer.
func (s *KafkaSource) Buffer() *PointBuffer { return s.buf }

// Close shuts down the reader.
func (s *KafkaSource) Close() error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

// Run consumes until ctx is cancelled or the reader is closed.
func (s *KafkaSource) Run(ctx context.Context) error {
	s.log.Info(ctx, "kafka consumer started",
		logger.String("topic", s.cfg.Topic),
		logger.String("group", s.cfg.GroupID),
		logger.String("brokers", strings.Join(s.cfg.Brokers, ",")),
		logger.Int("max_points", s.buf.max))
	defer s.log.Info(ctx, "kafka consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		msg, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			s.log.Error(ctx, "kafka fetch failed", logger.Error(err))
			continue
		}

		dp, decodeErr := decodeKafkaMessage(msg)
		metrics.RecordKafkaMessage(decodeErr == nil)
		switch {
		case decodeErr != nil:
			s.log.Warn(ctx, "kafka message not decodable", logger.Error(decodeErr), logger.Int64("offset", msg.Offset))
		case s.seen.SeenAndRecord(ctx, pointKey(dp)):
			metrics.RecordKafkaDuplicate()
			s.log.Debug(ctx, "kafka point redelivered, dropped", logger.Int64("offset", msg.Offset))
		default:
			count, evicted := s.buf.Append(dp)
			metrics.UpdateKafkaBuffered(count)
			if evicted {
				s.log.Debug(ctx, "kafka buffer full, oldest point evicted", logger.Int("depth", count))
			}
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		if err := s.reader.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				s.log.Error(ctx, "kafka commit failed", logger.Error(err))
			}
		}
		commitCancel()
	}
}

// pointKey identifies a reading by vessel and instant.
func pointKey(dp model.DataPoint) string { //nolint:gocritic // hugeParam: points travel by value
	return dp.VesselID + "|" + dp.Timestamp.UTC().Format(time.RFC3339Nano)
}

// decodeKafkaMessage reads one DataPoint. The message key names the vessel
// when the payload does not.
func decodeKafkaMessage(msg kafka.Message) (model.DataPoint, error) {
	var dp model.DataPoint
	if err := json.Unmarshal(msg.Value, &dp); err != nil {
		return dp, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if dp.VesselID == "" && len(msg.Key) > 0 {
		dp.VesselID = string(msg.Key)
	}
	return dp, nil
}
