package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/vesseltrail/internal/telemetrygen"
	"github.com/okian/vesseltrail/pkg/logger"
)

func main() {
	var (
		vessels  = flag.Int("vessels", telemetrygen.DefaultVessels, "Number of vessels")
		points   = flag.Int("points", telemetrygen.DefaultPoints, "Points per vessel")
		startStr = flag.String("start", "", "First timestamp, YYYY-MM-DD")
		interval = flag.Duration("interval", telemetrygen.DefaultInterval, "Spacing between points")
		seed     = flag.Uint64("seed", 1, "Random seed")
		gapEvery = flag.Int("gap-every", 0, "Drop the position of every n-th point")
		output   = flag.String("output", "", "Write a {\"Data\": [...]} document to this file")
		brokers  = flag.String("brokers", "", "Comma separated Kafka brokers")
		topic    = flag.String("topic", telemetrygen.DefaultTopic, "Kafka topic")
		batch    = flag.Int("batch", telemetrygen.DefaultBatchSize, "Messages per Kafka write")
		timeout  = flag.Duration("timeout", telemetrygen.DefaultTimeout, "Bound for the whole run")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		telemetrygen.ShowHelp()
		return
	}

	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	start := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(*points) * *interval)
	if *startStr != "" {
		t, err := time.Parse(time.DateOnly, *startStr)
		if err != nil {
			os.Stderr.WriteString("invalid -start: " + err.Error() + "\n")
			os.Exit(2)
		}
		start = t
	}

	cfg := &telemetrygen.Config{
		Vessels:   *vessels,
		Points:    *points,
		Start:     start,
		Interval:  *interval,
		Seed:      *seed,
		GapEvery:  *gapEvery,
		Output:    *output,
		Brokers:   splitBrokers(*brokers),
		Topic:     *topic,
		BatchSize: *batch,
		Timeout:   *timeout,
		Verbose:   *verbose,
		Logger:    logger.Named("telemetry-gen"),
	}

	stats, err := telemetrygen.Run(context.Background(), cfg)
	if err != nil {
		os.Stderr.WriteString("Generation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Get().Info(context.Background(), "done",
		logger.Int("generated", stats.PointsGenerated),
		logger.Int("written", stats.PointsWritten),
		logger.Int("published", stats.PointsPublished),
		logger.Duration("took", stats.Duration))
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
