package telemetrygen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/okian/vesseltrail/internal/adapters/datasource"
	"github.com/okian/vesseltrail/internal/domain/model"
)

// WriteFile stores points as a {"Data": [...]} document, the shape the
// file and http sources read.
func WriteFile(path string, points []model.DataPoint) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	b, err := json.MarshalIndent(datasource.Document{Data: points}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := os.WriteFile(path, b, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends points to Kafka, one message per point keyed by vessel.
type Publisher struct {
	w         messageWriter
	runID     string
	batchSize int
}

// NewPublisher creates a publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string, batchSize int) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, batchSize)
}

func newPublisher(w messageWriter, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Publisher{w: w, runID: uuid.NewString(), batchSize: batchSize}
}

// RunID identifies this publisher's messages.
func (p *Publisher) RunID() string { return p.runID }

// Publish writes points in batches and returns how many were acknowledged.
func (p *Publisher) Publish(ctx context.Context, points []model.DataPoint) (int, error) {
	sent := 0
	batch := make([]kafka.Message, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.w.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("kafka write: %w", err)
		}
		sent += len(batch)
		batch = batch[:0]
		return nil
	}

	for i := range points {
		b, err := json.Marshal(points[i])
		if err != nil {
			return sent, fmt.Errorf("encode point %d: %w", i, err)
		}
		batch = append(batch, kafka.Message{
			Key:     []byte(points[i].VesselID),
			Value:   b,
			Time:    time.Now(),
			Headers: []kafka.Header{{Key: runIDHeader, Value: []byte(p.runID)}},
		})
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return sent, err
			}
		}
	}
	return sent, flush()
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error { return p.w.Close() }
