package loadgen

import "io"

// ShowHelp prints usage information for the load generator.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `gradegen
========

Generates random score records, submits them to a running gradestats server
and verifies the server's statistics against a local computation.

Usage:
  gradegen [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -amqp string       Publish records to this AMQP URL instead of POST /grades
  -queue string      AMQP queue name (default "grades")
  -records int       Number of records to generate (default 1000)
  -learners int      Distinct learners (default 100)
  -classes int       Distinct classes (default 5)
  -duplicates int    Records re-sent with a used record id (default 0)
  -workers int       Concurrent submitters (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 30s)
  -settle duration   Max wait for records to be persisted (default 1m)
  -seed int          Random seed (default: current time)
  -output string     Write generated records to this JSON file
  -verbose           Enable debug logging
  -help              Show this help message

The server must use the default weights; verification assumes an empty store.
`)
}
