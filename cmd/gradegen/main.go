package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/gradestats/internal/loadgen"
	"github.com/okian/gradestats/pkg/logger"
)

// Default configuration constants.
const (
	defaultRecords  = 1000
	defaultLearners = 100
	defaultClasses  = 5
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout  = 30 * time.Second
	defaultSettle   = time.Minute
	defaultRunLimit = 10 * time.Minute
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		amqpURL    = flag.String("amqp", os.Getenv("GRADES_AMQP_URL"), "Publish records to this AMQP URL instead of POST /grades")
		queue      = flag.String("queue", "grades", "AMQP queue name")
		records    = flag.Int("records", defaultRecords, "Number of records to generate")
		learners   = flag.Int("learners", defaultLearners, "Distinct learners")
		classes    = flag.Int("classes", defaultClasses, "Distinct classes")
		duplicates = flag.Int("duplicates", 0, "Records re-sent with a used record id")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "Max wait for records to be persisted")
		seed       = flag.Int64("seed", 0, "Random seed (default: current time)")
		outputFile = flag.String("output", "", "Write generated records to this JSON file")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp(os.Stdout)
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:    *baseURL,
		AMQPURL:    *amqpURL,
		AMQPQueue:  *queue,
		Records:    *records,
		Learners:   *learners,
		Classes:    *classes,
		Duplicates: *duplicates,
		Workers:    *workers,
		Timeout:    *timeout,
		Settle:     *settle,
		Seed:       *seed,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
