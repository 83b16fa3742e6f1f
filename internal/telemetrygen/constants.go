package telemetrygen

import "time"

// Defaults used by the CLI.
const (
	DefaultVessels   = 2
	DefaultPoints    = 200
	DefaultInterval  = 6 * time.Hour
	DefaultBatchSize = 100
	DefaultTopic     = "vessel.telemetry"
	DefaultTimeout   = 2 * time.Minute
)

// Kafka header carrying the generation run id.
const runIDHeader = "run-id"

const (
	filePermission = 0o644
	dirPermission  = 0o750
)
