package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtnitsch/wiki-ngrams/internal/count"
	"github.com/dtnitsch/wiki-ngrams/internal/runs"
	"github.com/dtnitsch/wiki-ngrams/internal/split"
	"github.com/dtnitsch/wiki-ngrams/internal/topk"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/source"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wiki-ngrams",
		Usage: "Exact unigram and bigram frequencies for large article dumps",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log errors"},
		},
		Commands: []*cli.Command{
			{
				Name:  "split",
				Usage: "Split a dump into gzipped shards of one article per line",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input-path", Aliases: []string{"p"}, Required: true, Usage: "dump file or directory"},
					&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Required: true, Usage: "shard directory, replaced if it exists"},
					&cli.IntFlag{Name: "pieces", Aliases: []string{"s"}, Value: models.DefaultPieces, Usage: "number of shards"},
					&cli.StringFlag{Name: "format", Value: source.FormatCirrus, Usage: "input format: cirrus, lines or html"},
					&cli.IntFlag{Name: "min-article-words", Usage: "drop articles with fewer words"},
					&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Value: "en", Usage: "language kept by --detect-language"},
					&cli.BoolFlag{Name: "detect-language", Usage: "drop articles not detected as --language"},
					&cli.Uint64Flag{Name: "seed", Value: models.DefaultSeed, Usage: "shard assignment seed"},
				},
				Action: split.SplitAction,
			},
			{
				Name:    "count",
				Aliases: []string{"create-frequencies"},
				Usage:   "Count unigrams and bigrams across shards",
				Flags:   count.Flags,
				Action:  count.CountAction,
			},
			{
				Name:  "top-k-words",
				Usage: "Write the most frequent words of an n-gram file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input-file", Aliases: []string{"f"}, Required: true, Usage: "gzipped n-gram file"},
					&cli.StringFlag{Name: "output-file", Aliases: []string{"o"}, Required: true, Usage: "word list to write"},
					&cli.IntFlag{Name: "number-of-words", Aliases: []string{"k"}, Value: models.DefaultTopK, Usage: "words to keep"},
					&cli.IntFlag{Name: "minimum-word-length", Aliases: []string{"m"}, Value: models.DefaultMinWordLength, Usage: "shortest word, in runes"},
				},
				Action: topk.TopWordsAction,
			},
			{
				Name:  "runs",
				Usage: "List recorded counting runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "runs to show, 0 for all"},
					&cli.StringFlag{Name: "db", Usage: "run ledger path (default: next to the executable)"},
				},
				Action: runs.RunsAction,
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Show one run, the latest when no id is given",
						ArgsUsage: "[run-id]",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "top", Value: 20, Usage: "ranked n-grams to show per order"},
							&cli.StringFlag{Name: "db", Usage: "run ledger path (default: next to the executable)"},
						},
						Action: runs.RunAction,
					},
				},
			},
		},
	}
}
