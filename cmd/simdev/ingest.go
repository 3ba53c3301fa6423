package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/simdev/internal/database"
	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
	"github.com/ZanzyTHEbar/simdev/internal/evidence"
)

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "persist an evidence file into the SQLite database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "info", Usage: "evidence file to import"},
			&cli.StringFlag{Name: "db", Usage: "SQLite evidence database"},
		},
		OnUsageError: usageError,
		Action:       ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	info := strings.TrimSpace(c.String("info"))
	if info == "" {
		return apperrors.NewValidationError("--info is required", "info")
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.DatabasePath == "" {
		return apperrors.NewValidationError("--db is required", "db")
	}

	start := time.Now()
	records, err := evidence.Load(info)
	if err != nil {
		return err
	}
	logger.LoadLogger(info, len(records), time.Since(start))

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return apperrors.NewInternalError("failed to open database", err)
	}
	defer apperrors.SafeClose(db, "database")

	run, err := database.NewRepository(db).InsertEvidence(c.Context, info, records)
	if err != nil {
		return err
	}

	logger.Info("Evidence Ingested",
		"run_id", run.ID,
		"records", run.Records,
		"database", db.Path(),
	)
	fmt.Fprintln(c.App.Writer, run.ID)
	return nil
}
