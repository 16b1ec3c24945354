// Package loadgen generates random score records, submits them to a running
// grade service and checks the service's statistics against a local
// computation over the records it accepted.
package loadgen

import "time"

// Submission outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Runner configuration constants.
const (
	workerChannelMultiplier = 2
	percentageMultiplier    = 100
	defaultPollInterval     = 200 * time.Millisecond
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	AMQPURL    string        // When set, records are published to AMQP instead of POSTed
	AMQPQueue  string        // Queue name for AMQP publishing
	Records    int           // Number of records to generate
	Learners   int           // Distinct learner ids
	Classes    int           // Distinct class ids
	Duplicates int           // Records re-sent with an already used record id
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // Max wait for the service to persist accepted records
	Seed       int64         // Random seed; zero picks one from the clock
	OutputFile string        // Output file for generated records
	Verbose    bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicate  int
	Failed     int
	Mismatches int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
