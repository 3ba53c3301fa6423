package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/simdev/internal/analysis"
	"github.com/ZanzyTHEbar/simdev/internal/config"
	"github.com/ZanzyTHEbar/simdev/internal/database"
	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/evidence"
	"github.com/ZanzyTHEbar/simdev/internal/monitoring"
	"github.com/ZanzyTHEbar/simdev/internal/types"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintf(stderr, "simdev: %v\n", err)
		return apperrors.ExitCode(err)
	}
	return apperrors.ExitOK
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "simdev",
		Usage:     "find developers with similar language and code vocabulary",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				EnvVars: []string{"SIMDEV_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			ingestCommand(),
			serveCommand(),
		},
		// exit codes are derived from the returned error in run
		ExitErrHandler: func(*cli.Context, error) {},
		OnUsageError:   usageError,
	}
}

func usageError(_ *cli.Context, err error, _ bool) error {
	return apperrors.NewValidationError(err.Error())
}

// engineFlags are shared by every command that builds a snapshot
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "info", Usage: "evidence file (dev-info JSON, JSON array or JSON Lines)"},
		&cli.StringFlag{Name: "db", Usage: "SQLite evidence database"},
		&cli.Float64Flag{Name: "alpha", Usage: "weight of the language space in [0, 1]"},
		&cli.IntFlag{Name: "workers", Usage: "scoring workers"},
		&cli.StringFlag{Name: "dedup", Usage: "file or commit"},
	}
}

// loadSettings layers command-line flags over the file and environment
// configuration.
func loadSettings(c *cli.Context) (*config.Config, error) {
	cfg, errs := config.Load(c.String("config"))
	if cfg == nil {
		return nil, apperrors.NewConfigurationError("failed to load configuration", errors.Join(errs...))
	}

	// Values that failed to parse are replaced by defaults in cfg, so they
	// must be reported even when a flag overrides them later.
	var parseErrs []error
	for _, err := range errs {
		if errors.Is(err, config.ErrInvalidNumber) || errors.Is(err, config.ErrInvalidBool) {
			parseErrs = append(parseErrs, err)
		}
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("alpha") {
		cfg.Alpha = c.Float64("alpha")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("dedup") {
		cfg.Dedup = c.String("dedup")
	}
	if c.IsSet("limit") {
		cfg.Limit = c.Int("limit")
	}
	if c.IsSet("top_size") {
		cfg.TopSize = c.Int("top_size")
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("db") {
		cfg.DatabasePath = c.String("db")
	}

	if all := append(parseErrs, cfg.Validate()...); len(all) > 0 {
		msgs := make([]string, len(all))
		for i, err := range all {
			msgs[i] = err.Error()
		}
		return nil, apperrors.NewValidationError("invalid settings: " + strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// setup resolves settings and builds the stderr logger for a command
func setup(c *cli.Context) (*config.Config, *monitoring.Logger, error) {
	cfg, err := loadSettings(c)
	if err != nil {
		return nil, nil, err
	}
	level, err := monitoring.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, apperrors.NewValidationError(err.Error(), "log-level")
	}
	logger := monitoring.NewLogger(level, c.App.ErrWriter)
	logger.Debug("Configuration Loaded", "settings", cfg.LogSummary())
	return cfg, logger, nil
}

// openSource picks the evidence file when --info is given and the database
// otherwise. The returned close function is never nil.
func openSource(c *cli.Context, cfg *config.Config) (evidence.Source, string, func(), error) {
	noop := func() {}

	if info := strings.TrimSpace(c.String("info")); info != "" {
		return evidence.FileSource{Path: info}, info, noop, nil
	}
	if cfg.DatabasePath == "" {
		return nil, "", noop, apperrors.NewValidationError("an evidence source is required", "set --info or --db")
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, "", noop, apperrors.NewInternalError("failed to open database", err)
	}
	closeDB := func() { apperrors.SafeClose(db, "database") }
	return database.NewRepository(db), db.Path(), closeDB, nil
}

// buildSnapshot loads every record of src and aggregates it
func buildSnapshot(ctx context.Context, src evidence.Source, name string, cfg *config.Config, logger *monitoring.Logger) (*analysis.Snapshot, error) {
	start := time.Now()
	records, err := src.Records(ctx)
	if err != nil {
		return nil, err
	}
	logger.LoadLogger(name, len(records), time.Since(start))

	dedup, err := analysis.ParseDedupMode(cfg.Dedup)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), "dedup")
	}

	opts := analysis.DefaultOptions()
	opts.Dedup = dedup
	opts.Alpha = cfg.Alpha
	opts.Workers = cfg.Workers
	opts.OnSkip = func(index int, record types.Evidence, reason string) {
		logger.SkippedRecordLogger(index, record.DeveloperID, record.RepositoryID, reason)
	}

	start = time.Now()
	snapshot, err := analysis.NewSnapshot(records, opts)
	if err != nil {
		return nil, err
	}

	report := snapshot.Report()
	logger.SnapshotLogger(
		len(snapshot.Developers()),
		snapshot.Statistics().VocabularySize(),
		report.SkippedTotal(),
		report.WithoutLanguage,
		report.Duplicates,
		time.Since(start),
	)
	return snapshot, nil
}
