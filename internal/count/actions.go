package count

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dtnitsch/wiki-ngrams/internal/common"
	"github.com/dtnitsch/wiki-ngrams/models"
	dbpkg "github.com/dtnitsch/wiki-ngrams/pkg/db"
	"github.com/dtnitsch/wiki-ngrams/pkg/manifest"
	"github.com/dtnitsch/wiki-ngrams/pkg/pipeline"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func CountAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg, err := BuildConfig(c)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	format := c.String("format")
	if format != manifest.FormatYAML && format != manifest.FormatJSON {
		logger.Error("Unknown summary format", "format", format)
		os.Exit(1)
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	var database *dbpkg.DB
	if !c.Bool("no-db") {
		database, err = dbpkg.Open(cfg.DBPath)
		if err != nil {
			logger.Error("Failed to open database", "error", err)
			os.Exit(2)
		}
		defer database.Close()

		runID, err := startRun(database, p.Config())
		if err != nil {
			logger.Error("Failed to record run", "error", err)
			os.Exit(2)
		}
		p.WithRunID(runID)
		logger.Info("Run started", "run_id", runID, "input_dir", cfg.InputDir)
	}

	report, runErr := p.Run(c.Context)
	if database != nil {
		recordRun(database, report, runErr, logger)
	}

	out, err := manifest.Encode(manifest.NewSummary(report), format)
	if err != nil {
		logger.Error("Failed to encode summary", "error", err)
		os.Exit(2)
	}
	fmt.Print(string(out))

	if runErr != nil {
		var se *pipeline.StageError
		if errors.As(runErr, &se) {
			logger.Error("Counting failed", "stage", se.Stage, "component", se.Component, "error", se.Err)
		}
		os.Exit(2)
	}
	return nil
}

func startRun(database *dbpkg.DB, cfg models.CountConfig) (int64, error) {
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config: %w", err)
	}
	return database.CreateRun(cfg.InputDir, cfg.OutputFile, string(configYAML))
}

// recordRun stores the outcome in the ledger. Ledger errors are logged but
// do not fail a run whose outputs are already committed.
func recordRun(database *dbpkg.DB, report models.RunReport, runErr error, logger *slog.Logger) {
	if report.RunID == 0 {
		return
	}
	if runErr != nil {
		if err := database.FailRun(report.RunID, report.FailedStage, report.Error, report.Duration); err != nil {
			logger.Warn("Failed to record run failure", "run_id", report.RunID, "error", err)
		}
		return
	}
	if err := database.FinishRun(report.RunID, report); err != nil {
		logger.Warn("Failed to record run", "run_id", report.RunID, "error", err)
		return
	}
	for order, recs := range map[int][]models.CountRecord{1: report.TopUnigrams, 2: report.TopBigrams} {
		if err := database.InsertTopNGrams(report.RunID, order, recs); err != nil {
			logger.Warn("Failed to record top n-grams", "run_id", report.RunID, "order", order, "error", err)
		}
	}
	logger.Info("Run recorded", "run_id", report.RunID, "duration", report.Duration.Round(time.Millisecond).String())
}
