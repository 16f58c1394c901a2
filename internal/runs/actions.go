package runs

import (
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/dtnitsch/wiki-ngrams/pkg/db"
	"github.com/dtnitsch/wiki-ngrams/pkg/mapreduce"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func RunsAction(c *cli.Context) error {
	database, err := dbpkg.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	limit := c.Int("limit")
	runs, err := database.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	// Print table header
	fmt.Printf("%-6s %-20s %-10s %-12s %-14s %-14s %-10s %-30s\n",
		"ID", "Created", "Status", "Articles", "Unigrams", "Bigrams", "Duration", "Output")
	fmt.Println(strings.Repeat("-", 120))

	for _, r := range runs {
		fmt.Printf("%-6d %-20s %-10s %-12s %-14s %-14s %-10s %-30s\n",
			r.RunID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Status,
			humanize.Comma(r.Stats.Articles),
			humanize.Comma(r.Stats.DistinctUnigrams),
			humanize.Comma(r.Stats.DistinctBigrams),
			r.Duration.Round(time.Second).String(),
			r.OutputFile,
		)
	}

	fmt.Printf("\nTotal: %d runs\n", len(runs))
	fmt.Printf("\nTip: Use 'wiki-ngrams runs show <id>' to see details\n")

	return nil
}

// RunAction shows details for a specific run
func RunAction(c *cli.Context) error {
	database, err := dbpkg.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	runID, err := GetRunIDOrLatest(c, database)
	if err != nil {
		return err
	}

	run, err := database.GetRunByID(runID)
	if err != nil {
		return err
	}
	outputs, err := database.GetRunOutputs(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %d\n", run.RunID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Created:     %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Status:      %s\n", run.Status)
	fmt.Printf("Input:       %s\n", run.InputDir)
	fmt.Printf("Output:      %s\n", run.OutputFile)
	fmt.Printf("Config:      %s\n", run.ConfigHash)
	if run.Status == dbpkg.StatusFailed {
		fmt.Printf("Failed in:   %s\n", run.FailedStage)
		fmt.Printf("Error:       %s\n", run.ErrorMessage)
		return nil
	}
	s := run.Stats
	fmt.Printf("Articles:    %s in %d shards (%d skipped)\n", humanize.Comma(s.Articles), s.Shards, s.SkippedArticles)
	fmt.Printf("Tokens:      %s (%s bigrams)\n", humanize.Comma(int64(s.Tokens)), humanize.Comma(int64(s.Bigrams)))
	fmt.Printf("Distinct:    %s unigrams, %s bigrams\n", humanize.Comma(s.DistinctUnigrams), humanize.Comma(s.DistinctBigrams))
	fmt.Printf("Spills:      %d files (%s), %d merge steps\n", s.SpillFiles, humanize.IBytes(uint64(s.SpillBytes)), s.MergeSteps)
	fmt.Printf("Duration:    %s\n", run.Duration.Round(time.Millisecond))

	if len(outputs) > 0 {
		fmt.Printf("\nOutputs (%d):\n", len(outputs))
		fmt.Println(strings.Repeat("-", 60))
		for _, o := range outputs {
			fmt.Printf("  %-14s %-10s %s\n", o.Kind, humanize.IBytes(uint64(o.SizeBytes)), o.Path)
		}
	}

	top := c.Int("top")
	for _, order := range []int{1, 2} {
		recs, err := database.GetRunTopNGrams(runID, order, top)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			continue
		}
		fmt.Printf("\nTop %d-grams:\n", order)
		fmt.Println(strings.Repeat("-", 60))
		mapreduce.PrintTopKeywords(c.App.Writer, recs, len(recs))
	}

	return nil
}
