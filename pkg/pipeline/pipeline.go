// Package pipeline runs a counting job end to end: shard aggregation on a
// worker pool, the merge of all spill files, top-k selection and the output
// files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/arpa"
	"github.com/dtnitsch/wiki-ngrams/pkg/detector"
	"github.com/dtnitsch/wiki-ngrams/pkg/manifest"
	"github.com/dtnitsch/wiki-ngrams/pkg/mapreduce"
	"github.com/dtnitsch/wiki-ngrams/pkg/source"
	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
	"github.com/dtnitsch/wiki-ngrams/pkg/storage"
	"github.com/dtnitsch/wiki-ngrams/pkg/tokenizer"
	"golang.org/x/sync/errgroup"
)

// ErrInsufficientSpace is returned when the spill directory has less free
// space than configured.
var ErrInsufficientSpace = errors.New("insufficient free space")

// mergedID names the spill file holding the final merged stream.
var mergedID = spill.ID{Shard: spill.MergeShard, Seq: 0}

// Output file suffixes appended to the configured output file.
const (
	SuffixARPA        = ".gz"
	SuffixTopK        = ".topk.tsv"
	SuffixTopKBigrams = ".topk-bigrams.tsv"
	SuffixMerged      = ".merged"
	SuffixReport      = ".report.yaml"
)

type Pipeline struct {
	cfg    models.CountConfig
	tok    *tokenizer.Tokenizer
	logger *slog.Logger
	runID  int64
}

// New validates the configuration and loads the dictionary.
func New(cfg models.CountConfig, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if _, err := detector.ParseLanguage(cfg.Language); err != nil {
		return nil, err
	}

	var dict tokenizer.Dictionary
	if cfg.DictionaryPath != "" {
		if !storage.HasFile(cfg.DictionaryPath) {
			return nil, fmt.Errorf("%w: dictionary %s is not a file", models.ErrInvalidConfig, cfg.DictionaryPath)
		}
		var err error
		dict, err = tokenizer.LoadDictionary(cfg.DictionaryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load dictionary: %w", err)
		}
		logger.Info("Loaded dictionary", "path", cfg.DictionaryPath, "words", humanize.Comma(int64(len(dict))))
	}

	return &Pipeline{cfg: cfg, tok: tokenizer.New(cfg.Language, dict), logger: logger}, nil
}

// WithRunID sets the ledger id written into the run report.
func (p *Pipeline) WithRunID(id int64) *Pipeline {
	p.runID = id
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() models.CountConfig {
	return p.cfg
}

// WorkDir returns the directory under which run spill directories are made.
func (p *Pipeline) WorkDir() string {
	if p.cfg.WorkDir != "" {
		return p.cfg.WorkDir
	}
	return filepath.Join(p.cfg.InputDir, ".spill")
}

// OutputPath returns the path of an output with the given suffix.
func (p *Pipeline) OutputPath(suffix string) string {
	return p.cfg.OutputFile + suffix
}

// Run executes the job. On failure no output file is left behind, the run's
// spill directory is removed and the returned error is a *StageError. The
// report is filled in either way.
func (p *Pipeline) Run(ctx context.Context) (models.RunReport, error) {
	report := models.RunReport{RunID: p.runID, StartedAt: time.Now().UTC(), Status: "failed"}
	err := p.run(ctx, &report)
	report.Duration = time.Since(report.StartedAt)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			report.FailedStage = se.Stage
		}
		report.Error = err.Error()
		p.logger.Error("Run failed", "stage", report.FailedStage, "error", err)
		return report, err
	}
	report.Status = "succeeded"
	p.logger.Info("Run finished",
		"articles", humanize.Comma(report.Stats.Articles),
		"tokens", humanize.Comma(int64(report.Stats.Tokens)),
		"distinct_unigrams", humanize.Comma(report.Stats.DistinctUnigrams),
		"distinct_bigrams", humanize.Comma(report.Stats.DistinctBigrams),
		"skipped", report.Stats.SkippedArticles,
		"duration", report.Duration.Round(time.Millisecond).String())
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *models.RunReport) error {
	shards, err := source.ListShards(p.cfg.InputDir)
	if err != nil {
		return stageError(StagePrepare, "input", err)
	}
	report.Stats.Shards = len(shards)
	if len(shards) == 0 {
		p.logger.Warn("No shard files found", "path", p.cfg.InputDir)
	}

	workDir := p.WorkDir()
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return stageError(StagePrepare, "work dir", err)
	}
	if err := p.checkFreeSpace(workDir); err != nil {
		return stageError(StagePrepare, "work dir", err)
	}
	spillDir, err := os.MkdirTemp(workDir, "run-")
	if err != nil {
		return stageError(StagePrepare, "work dir", err)
	}
	store, err := storage.New(spillDir)
	if err != nil {
		return stageError(StagePrepare, "work dir", err)
	}
	defer func() {
		if err := store.RemoveAll(); err != nil {
			p.logger.Warn("Failed to remove spill directory", "path", store.BaseDir(), "error", err)
		}
	}()
	p.logger.Info("Counting started", "input_dir", p.cfg.InputDir, "shards", len(shards),
		"language", p.tok.Language(), "spill_dir", store.BaseDir())

	runs, err := p.aggregate(ctx, shards, store, &report.Stats)
	if err != nil {
		return err
	}

	merged, coll, err := p.merge(ctx, runs, store, &report.Stats)
	if err != nil {
		return err
	}

	report.TopUnigrams = coll.unigrams.Result()
	report.TopBigrams = coll.bigrams.Result()
	report.Outputs, err = p.writeOutputs(merged, coll, report)
	if err != nil {
		return stageError(StageOutput, "outputs", err)
	}
	return nil
}

func (p *Pipeline) checkFreeSpace(dir string) error {
	if p.cfg.MinFreeSpace == 0 {
		return nil
	}
	free, ok, err := storage.FreeSpace(dir)
	if err != nil {
		return fmt.Errorf("failed to read free space: %w", err)
	}
	if !ok {
		p.logger.Warn("Free space check not supported on this platform", "path", dir)
		return nil
	}
	if free < uint64(p.cfg.MinFreeSpace) {
		return fmt.Errorf("%w: %s free in %s, need %s", ErrInsufficientSpace, humanize.IBytes(free), dir, p.cfg.MinFreeSpace)
	}
	return nil
}

// aggregate counts every shard on the worker pool. The first failing shard
// cancels the others.
func (p *Pipeline) aggregate(ctx context.Context, shards []string, store *storage.Storage, stats *models.RunStats) ([]mapreduce.Run, error) {
	shardRuns := make([][]mapreduce.Run, len(shards))
	shardStats := make([]mapreduce.ShardStats, len(shards))

	p.logger.Info("Aggregating shards", "shards", len(shards), "workers", p.cfg.Workers, "memory_budget", p.cfg.MemoryBudget.String())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, path := range shards {
		g.Go(func() error {
			runs, st, err := p.aggregateShard(gctx, i, path, store)
			if err != nil {
				return stageError(StageAggregate, fmt.Sprintf("shard %d (%s)", i, filepath.Base(path)), err)
			}
			shardRuns[i] = runs
			shardStats[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var runs []mapreduce.Run
	for i, st := range shardStats {
		stats.Articles += st.Articles
		stats.SkippedArticles += st.Skipped
		stats.Tokens += st.Tokens
		stats.Bigrams += st.Bigrams
		stats.SpillFiles += st.Spills
		runs = append(runs, shardRuns[i]...)
	}
	for _, r := range runs {
		if !r.OnDisk() {
			continue
		}
		fs, err := storage.GetFileStats(r.Path)
		if err != nil {
			return nil, stageError(StageAggregate, "spill "+r.ID.String(), err)
		}
		stats.SpillBytes += fs.SizeBytes
	}
	p.logger.Info("Shards aggregated", "runs", len(runs), "spill_files", stats.SpillFiles,
		"spill_bytes", humanize.IBytes(uint64(stats.SpillBytes)))
	return runs, nil
}

func (p *Pipeline) aggregateShard(ctx context.Context, shard int, path string, store *storage.Storage) ([]mapreduce.Run, mapreduce.ShardStats, error) {
	logger := p.logger.With("worker_id", shard)
	agg, err := mapreduce.NewAggregator(mapreduce.AggregatorConfig{
		Shard:             shard,
		MemoryBudget:      uint64(p.cfg.MemoryBudget),
		RemainderInMemory: uint64(p.cfg.RemainderInMemory),
	}, store, p.tok, logger)
	if err != nil {
		return nil, mapreduce.ShardStats{}, err
	}

	r, err := source.OpenShard(path)
	if err != nil {
		return nil, mapreduce.ShardStats{}, err
	}
	defer r.Close()

	for n := 0; r.Next(); n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				agg.Abort()
				return nil, agg.Stats(), err
			}
		}
		if err := agg.AddArticle(r.Text()); err != nil {
			agg.Abort()
			return nil, agg.Stats(), err
		}
	}
	if err := r.Err(); err != nil {
		agg.Abort()
		return nil, agg.Stats(), fmt.Errorf("failed to read shard: %w", err)
	}

	runs, err := agg.Finish()
	if err != nil {
		agg.Abort()
		return nil, agg.Stats(), err
	}
	st := agg.Stats()
	logger.Info("Shard aggregated", "shard", shard, "path", path,
		"articles", st.Articles, "skipped", st.Skipped, "tokens", st.Tokens,
		"spills", st.Spills, "peak", humanize.IBytes(st.PeakBytes))
	return runs, st, nil
}

// merge reduces all runs into the merged stream file while collecting the
// top-k lists and totals.
func (p *Pipeline) merge(ctx context.Context, runs []mapreduce.Run, store *storage.Storage, stats *models.RunStats) (string, *collector, error) {
	w, err := store.CreateSpill(mergedID)
	if err != nil {
		return "", nil, stageError(StageMerge, "merged stream", err)
	}
	coll := newCollector(w, p.cfg.TopK, p.cfg.MinWordLength)

	p.logger.Info("Merging runs", "runs", len(runs), "fan_in", p.cfg.MergeFanIn)
	steps, err := mapreduce.MergeTree(ctx, runs, p.cfg.MergeFanIn, p.cfg.Workers, store, p.logger, coll.emit)
	if err != nil {
		w.Abort()
		return "", nil, stageError(StageMerge, "merge tree", err)
	}
	if err := w.Close(); err != nil {
		w.Abort()
		return "", nil, stageError(StageMerge, "merged stream", err)
	}

	stats.MergeSteps = steps
	stats.DistinctUnigrams = coll.distinctUnigrams
	stats.DistinctBigrams = coll.distinctBigrams
	p.logger.Info("Runs merged", "steps", steps,
		"distinct_unigrams", humanize.Comma(coll.distinctUnigrams),
		"distinct_bigrams", humanize.Comma(coll.distinctBigrams),
		"ranked_unigrams", humanize.Comma(coll.unigrams.Seen()),
		"ranked_bigrams", humanize.Comma(coll.bigrams.Seen()))
	return w.Path(), coll, nil
}

// writeOutputs writes every output file and commits them together, then
// saves the report next to them.
func (p *Pipeline) writeOutputs(mergedPath string, coll *collector, report *models.RunReport) ([]models.OutputFile, error) {
	var outputs manifest.OutputSet
	defer outputs.Discard()

	arpaPath := p.OutputPath(SuffixARPA)
	w, err := outputs.Create(manifest.KindARPA, arpaPath)
	if err != nil {
		return nil, err
	}
	if err := p.writeARPA(w, mergedPath, coll); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", arpaPath, err)
	}

	for _, list := range []struct {
		kind, suffix string
		recs         []models.CountRecord
	}{
		{manifest.KindTopK, SuffixTopK, report.TopUnigrams},
		{manifest.KindTopKBigrams, SuffixTopKBigrams, report.TopBigrams},
	} {
		w, err := outputs.Create(list.kind, p.OutputPath(list.suffix))
		if err != nil {
			return nil, err
		}
		if err := manifest.WriteTopK(w, list.recs); err != nil {
			return nil, err
		}
	}

	if p.cfg.KeepMerged {
		w, err := outputs.Create(manifest.KindMerged, p.OutputPath(SuffixMerged))
		if err != nil {
			return nil, err
		}
		if err := copyFile(w, mergedPath); err != nil {
			return nil, err
		}
	}

	files, err := outputs.Commit()
	if err != nil {
		return nil, err
	}

	report.Outputs = files
	report.Status = "succeeded"
	report.Duration = time.Since(report.StartedAt)
	if err := manifest.SaveReport(p.OutputPath(SuffixReport), manifest.NewSummary(*report)); err != nil {
		for _, f := range files {
			os.Remove(f.Path)
		}
		return nil, err
	}
	return files, nil
}

// writeARPA streams the merged file into the n-gram file. N-grams found in
// no more than MinArticles articles are left out of the sections; the header
// counts cover all of them.
func (p *Pipeline) writeARPA(w io.Writer, mergedPath string, coll *collector) error {
	aw, err := arpa.NewWriter(w, filepath.Base(p.cfg.OutputFile), arpa.Header{
		TotalUnigrams:    coll.totalUnigrams,
		DistinctUnigrams: coll.distinctUnigrams,
		DistinctBigrams:  coll.distinctBigrams,
	})
	if err != nil {
		return err
	}

	r, err := spill.Open(mergedPath)
	if err != nil {
		return err
	}
	defer r.Close()

	minDocs := uint64(p.cfg.MinArticles)
	for r.Next() {
		rec := r.Record()
		if minDocs > 0 && rec.Docs <= minDocs {
			continue
		}
		if err := aw.Write(rec); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	return aw.Close()
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
