package split

import (
	"fmt"
	"os"

	"github.com/dtnitsch/wiki-ngrams/internal/common"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/splitter"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func SplitAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	cfg := models.SplitConfig{
		InputPath:       c.String("input-path"),
		OutputDir:       c.String("output-dir"),
		Pieces:          c.Int("pieces"),
		Format:          c.String("format"),
		MinArticleWords: c.Int("min-article-words"),
		Language:        c.String("language"),
		DetectLanguage:  c.Bool("detect-language"),
		Seed:            c.Uint64("seed"),
	}

	s, err := splitter.New(cfg, logger)
	if err != nil {
		logger.Error("Invalid split configuration", "error", err)
		os.Exit(1)
	}

	stats, err := s.Run(c.Context)
	if err != nil {
		logger.Error("Split failed", "input", cfg.InputPath, "error", err)
		os.Exit(2)
	}

	fmt.Printf("Split %s articles from %s into %d pieces in %s\n",
		humanize.Comma(stats.Articles), cfg.InputPath, stats.Pieces, cfg.OutputDir)
	if skipped := stats.SkippedMalformed + stats.FilteredShort + stats.FilteredLanguage; skipped > 0 {
		fmt.Printf("Skipped %s (malformed: %d, short: %d, language: %d)\n",
			humanize.Comma(skipped), stats.SkippedMalformed, stats.FilteredShort, stats.FilteredLanguage)
	}
	return nil
}
