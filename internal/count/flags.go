package count

import (
	"fmt"
	"path/filepath"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/urfave/cli/v2"
)

// Flags are the options of the count command.
var Flags = []cli.Flag{
	&cli.StringFlag{Name: "input-dir", Aliases: []string{"d"}, Usage: "directory holding the split shard files"},
	&cli.StringFlag{Name: "output-file", Aliases: []string{"o"}, Usage: "n-gram output file, placed in the input dir when given as a bare name"},
	&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Value: "en", Usage: "ISO 639-1 language of the articles"},
	&cli.StringFlag{Name: "dictionary", Usage: "word list; tokens not in it become <unk>"},
	&cli.StringFlag{Name: "config", Usage: "YAML config file, flags override its values"},
	&cli.IntFlag{Name: "workers", Usage: "shards aggregated in parallel (default: CPUs - 1)"},
	&cli.StringFlag{Name: "memory-budget", Usage: "estimated bytes per shard before spilling, e.g. 256MB"},
	&cli.StringFlag{Name: "remainder-in-memory", Usage: "tail kept in memory after the last spill"},
	&cli.IntFlag{Name: "merge-fan-in", Usage: "runs merged in one pass"},
	&cli.StringFlag{Name: "work-dir", Usage: "spill directory parent (default: <input-dir>/.spill)"},
	&cli.StringFlag{Name: "min-free-space", Usage: "refuse to start with less free space in the work dir"},
	&cli.IntFlag{Name: "top-k", Usage: "entries in each top-k list"},
	&cli.IntFlag{Name: "min-word-length", Aliases: []string{"m"}, Usage: "shortest word, in runes, eligible for top-k; 0 ranks every n-gram"},
	&cli.IntFlag{Name: "min-articles", Usage: "leave out n-grams found in no more than this many articles"},
	&cli.BoolFlag{Name: "keep-merged", Usage: "also keep the merged record stream"},
	&cli.StringFlag{Name: "db", Usage: "run ledger path (default: next to the executable)"},
	&cli.BoolFlag{Name: "no-db", Usage: "do not record the run in the ledger"},
	&cli.StringFlag{Name: "format", Value: "yaml", Usage: "summary format: yaml or json"},
}

// BuildConfig layers command-line flags over the --config file, or over the
// defaults when no file is given. Only flags set on the command line
// override.
func BuildConfig(c *cli.Context) (models.CountConfig, error) {
	cfg := models.DefaultCountConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = models.LoadConfig(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("input-dir") {
		cfg.InputDir = c.String("input-dir")
	}
	if c.IsSet("output-file") {
		cfg.OutputFile = c.String("output-file")
	}
	if c.IsSet("language") || cfg.Language == "" {
		cfg.Language = c.String("language")
	}
	if c.IsSet("dictionary") {
		cfg.DictionaryPath = c.String("dictionary")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("merge-fan-in") {
		cfg.MergeFanIn = c.Int("merge-fan-in")
	}
	if c.IsSet("work-dir") {
		cfg.WorkDir = c.String("work-dir")
	}
	if c.IsSet("top-k") {
		cfg.TopK = c.Int("top-k")
	}
	if c.IsSet("min-word-length") {
		cfg.MinWordLength = c.Int("min-word-length")
	}
	if c.IsSet("min-articles") {
		cfg.MinArticles = c.Int("min-articles")
	}
	if c.IsSet("keep-merged") {
		cfg.KeepMerged = c.Bool("keep-merged")
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}

	sizes := []struct {
		flag string
		dst  *models.ByteSize
	}{
		{"memory-budget", &cfg.MemoryBudget},
		{"remainder-in-memory", &cfg.RemainderInMemory},
		{"min-free-space", &cfg.MinFreeSpace},
	}
	for _, s := range sizes {
		if !c.IsSet(s.flag) {
			continue
		}
		n, err := models.ParseByteSize(c.String(s.flag))
		if err != nil {
			return cfg, fmt.Errorf("--%s: %w", s.flag, err)
		}
		*s.dst = n
	}

	cfg.OutputFile = ResolveOutputFile(cfg.InputDir, cfg.OutputFile)
	return cfg, nil
}

// ResolveOutputFile places a bare file name inside the input directory.
// Paths with a directory part are used as given.
func ResolveOutputFile(inputDir, outputFile string) string {
	if outputFile == "" || inputDir == "" || filepath.Base(outputFile) != outputFile {
		return outputFile
	}
	return filepath.Join(inputDir, outputFile)
}
