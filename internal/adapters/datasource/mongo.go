package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/pkg/logger"
)

const mongoConnectTimeout = 10 * time.Second

// documentFinder is the slice of *mongo.Collection the source needs.
type documentFinder interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// MongoConfig selects the collection holding performance documents.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	// Limit caps the number of documents per load. Zero means unlimited.
	Limit int64
}

// MongoSource reads performance documents sorted by timestamp.
type MongoSource struct {
	client *mongo.Client
	coll   documentFinder
	limit  int64
	log    logger.Logger
}

// NewMongoSource connects, verifies the connection and ensures the timestamp index.
func NewMongoSource(ctx context.Context, cfg MongoConfig, log logger.Logger) (*MongoSource, error) {
	if cfg.URI == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: mongo uri, database and collection are required", ErrInvalidArgs)
	}
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(mongoConnectTimeout).
		SetServerSelectionTimeout(mongoConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrUpstream, err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %v", ErrUpstream, err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(cctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetName("timestamp_1"),
	})
	if err != nil {
		log.Warn(ctx, "mongo timestamp index not ensured", logger.Error(err))
	}

	log.Info(ctx, "connected to MongoDB",
		logger.String("database", cfg.Database), logger.String("collection", cfg.Collection))
	return &MongoSource{client: client, coll: coll, limit: cfg.Limit, log: log}, nil
}

func newMongoSourceWithFinder(f documentFinder, limit int64, log logger.Logger) *MongoSource {
	return &MongoSource{coll: f, limit: limit, log: log}
}

// Name implements Source.
func (s *MongoSource) Name() string { return "mongo" }

// Load implements Source.
func (s *MongoSource) Load(ctx context.Context) ([]model.DataPoint, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if s.limit > 0 {
		opts.SetLimit(s.limit)
	}
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", ErrUpstream, err)
	}
	defer cur.Close(ctx)

	points := []model.DataPoint{}
	skipped := 0
	for cur.Next(ctx) {
		dp, err := decodeDocument(cur.Current)
		if err != nil {
			skipped++
			continue
		}
		points = append(points, dp)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", ErrUpstream, err)
	}
	if skipped > 0 {
		s.log.Warn(ctx, "skipped undecodable mongo documents", logger.Int("count", skipped))
	}
	return points, nil
}

// Close disconnects the client.
func (s *MongoSource) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// decodeDocument maps a BSON document onto a DataPoint through relaxed
// extended JSON, so the json tags stay the single field mapping.
func decodeDocument(raw bson.Raw) (model.DataPoint, error) {
	var dp model.DataPoint
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return dp, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := json.Unmarshal(ext, &dp); err != nil {
		return dp, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return dp, nil
}
