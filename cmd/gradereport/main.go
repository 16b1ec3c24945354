package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/config"
	"github.com/okian/gradestats/internal/domain/aggregate"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/report"
	"github.com/okian/gradestats/pkg/logger"
)

type options struct {
	fixture string
	driver  string
	dsn     string
	learner int
	class   string
	strict  bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.fixture, "fixture", "", "YAML or JSON fixture to read records from")
	flag.StringVar(&opts.driver, "driver", "", "SQL driver (sqlite, pgx, postgres); defaults to GRADES_DB_DRIVER")
	flag.StringVar(&opts.dsn, "dsn", "", "SQL DSN; defaults to GRADES_DB_DSN")
	flag.IntVar(&opts.learner, "learner", -1, "Print class averages for this learner")
	flag.StringVar(&opts.class, "class", "", "Restrict the learner table to this class")
	flag.BoolVar(&opts.strict, "strict", false, "Fail on malformed entries instead of skipping them")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	if err := run(ctx, os.Stdout, cfg, opts); err != nil {
		logger.Get().Error(ctx, "report failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, opts options) error {
	records, err := loadRecords(ctx, cfg, opts)
	if err != nil {
		return err
	}
	logger.Get().Debug(ctx, "records loaded", logger.Int("count", len(records)))

	engineOpts := []aggregate.Option{aggregate.WithPolicy(cfg.Policy())}
	if opts.strict || cfg.StrictEntries {
		engineOpts = append(engineOpts, aggregate.WithStrict())
	}
	r := report.New(out,
		report.WithEngine(aggregate.New(engineOpts...)),
		report.WithThreshold(cfg.PassThreshold),
	)

	if opts.learner >= 0 {
		if err := r.LearnerClasses(records, opts.learner); err != nil {
			return err
		}
	}
	var class *string
	if opts.class != "" {
		class = &opts.class
	}
	if err := r.Learners(records, class); err != nil {
		return err
	}
	return r.Statistics(records)
}

func loadRecords(ctx context.Context, cfg *config.Config, opts options) ([]model.ScoreRecord, error) {
	if opts.fixture != "" {
		return repository.LoadFixture(opts.fixture)
	}

	driver, dsn := cfg.DBDriver, cfg.DBDSN
	if opts.driver != "" {
		driver, dsn = opts.driver, opts.dsn
	}
	if driver == "" || driver == config.DriverMemory {
		return nil, fmt.Errorf("no records source: pass -fixture or a SQL -driver")
	}
	store, err := repository.OpenSQL(ctx, driver, dsn, repository.WithSkipSchema())
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.FetchRecords(ctx, repository.All())
}
