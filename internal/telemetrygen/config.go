package telemetrygen

import (
	"time"

	"github.com/okian/vesseltrail/pkg/logger"
)

// Config holds configuration for a generation run.
type Config struct {
	Vessels   int           // Number of vessels, taken from the fleet catalog in order
	Points    int           // Points per vessel
	Start     time.Time     // Timestamp of the first point of every voyage
	Interval  time.Duration // Spacing between consecutive points
	Seed      uint64        // Random seed; the same seed yields the same series
	GapEvery  int           // Every n-th point has no position (0 disables)
	Output    string        // File path for the {"Data": [...]} document; empty skips it
	Brokers   []string      // Kafka brokers; empty skips publishing
	Topic     string        // Kafka topic
	BatchSize int           // Messages per Kafka write
	Timeout   time.Duration // Bound for the whole run
	Verbose   bool          // Enable debug logging
	Logger    logger.Logger // Defaults to a no-op logger
}

// Stats holds run statistics.
type Stats struct {
	PointsGenerated int
	PointsWritten   int
	PointsPublished int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
