package telemetrygen

import "os"

// ShowHelp prints usage information for the telemetry generator.
func ShowHelp() {
	os.Stdout.WriteString(`Vessel Trail Telemetry Generator
================================

Generates synthetic voyages for the built-in fleet.

Usage:
  go run ./cmd/telemetry-gen [options]

Options:
  -vessels int
        Number of vessels (default 2)
  -points int
        Points per vessel (default 200)
  -start string
        First timestamp, YYYY-MM-DD (default: points*interval before now)
  -interval duration
        Spacing between points (default 6h)
  -seed uint
        Random seed (default 1)
  -gap-every int
        Drop the position of every n-th point (default 0, disabled)
  -output string
        Write a {"Data": [...]} document to this file
  -brokers string
        Comma separated Kafka brokers; publish when set
  -topic string
        Kafka topic (default "vessel.telemetry")
  -batch int
        Messages per Kafka write (default 100)
  -timeout duration
        Bound for the whole run (default 2m)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Refresh the bundled mock data
  go run ./cmd/telemetry-gen -output data/mock-data.json

  # Feed a local broker
  go run ./cmd/telemetry-gen -brokers localhost:9092 -points 1000
`)
}
