package main

import (
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/simdev/internal/analysis"
	"github.com/ZanzyTHEbar/simdev/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/security"
)

func searchCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "source", Usage: "developer to find matches for"},
		&cli.StringFlag{Name: "export", Usage: "write results to this file instead of stdout"},
		&cli.StringFlag{Name: "export-dir", Usage: "write results to <dir>/similar/<source>.json"},
		&cli.IntFlag{Name: "limit", Usage: "maximum number of matches", Value: 10},
		&cli.IntFlag{Name: "top_size", Aliases: []string{"top-size"}, Usage: "explanation entries per list", Value: 3},
	}

	return &cli.Command{
		Name:         "search",
		Usage:        "rank the developers most similar to --source",
		Flags:        append(flags, engineFlags()...),
		OnUsageError: usageError,
		Action:       searchAction,
	}
}

func searchAction(c *cli.Context) error {
	source := strings.TrimSpace(c.String("source"))
	if source == "" {
		return apperrors.NewValidationError("--source is required", "source")
	}
	if err := security.ValidateDeveloperID(source); err != nil {
		return err
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	query := analysis.Query{DeveloperID: source, Limit: cfg.Limit, TopSize: cfg.TopSize}
	// reject bad arguments before paying for the load
	if err := analysis.ValidateQuery(query); err != nil {
		return err
	}

	src, name, closeSource, err := openSource(c, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	snapshot, err := buildSnapshot(c.Context, src, name, cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := snapshot.Search(c.Context, query)
	if err != nil {
		return err
	}
	logger.SearchLogger(source, query.Limit, len(results), time.Since(start), false)

	records := encoding.FromResults(results)

	exportPath := c.String("export")
	if exportPath == "" && c.String("export-dir") != "" {
		exportPath = encoding.ExportPath(c.String("export-dir"), source)
	}
	if exportPath != "" {
		if err := encoding.WriteFile(exportPath, records); err != nil {
			return apperrors.NewInternalError("failed to export results", err)
		}
		logger.Info("Results Exported", "path", exportPath, "results", len(records))
		return nil
	}

	if err := encoding.Write(c.App.Writer, records); err != nil {
		return apperrors.NewInternalError("failed to write results", err)
	}
	return nil
}
