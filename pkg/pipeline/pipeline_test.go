package pipeline

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/arpa"
	"github.com/dtnitsch/wiki-ngrams/pkg/manifest"
	"github.com/dtnitsch/wiki-ngrams/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeShards writes one gzip shard file per article list.
func writeShards(t *testing.T, shards ...[]string) string {
	t.Helper()
	dir := t.TempDir()
	for i, articles := range shards {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("corpus.split.%03d.gz", i)))
		if err != nil {
			t.Fatal(err)
		}
		gz := gzip.NewWriter(f)
		for _, a := range articles {
			io.WriteString(gz, a+"\n")
		}
		if err := gz.Close(); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	return dir
}

func testConfig(t *testing.T, inputDir string) models.CountConfig {
	t.Helper()
	out := t.TempDir()
	cfg := models.DefaultCountConfig()
	cfg.InputDir = inputDir
	cfg.OutputFile = filepath.Join(out, "counts.txt")
	cfg.WorkDir = filepath.Join(out, "work")
	cfg.Language = "en"
	cfg.Workers = 2
	return cfg
}

func runPipeline(t *testing.T, cfg models.CountConfig) models.RunReport {
	t.Helper()
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return report
}

func readARPA(t *testing.T, path string) (arpa.Header, map[models.NGram]uint64) {
	t.Helper()
	counts := make(map[models.NGram]uint64)
	h, err := arpa.ReadFile(path, func(rec models.CountRecord) error {
		counts[rec.NGram] = rec.Count
		return nil
	})
	if err != nil {
		t.Fatalf("arpa.ReadFile() error = %v", err)
	}
	return h, counts
}

func outputHashes(report models.RunReport) map[string]string {
	hashes := make(map[string]string)
	for _, out := range report.Outputs {
		hashes[out.Kind] = out.SHA256
	}
	return hashes
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("%s not empty: %v", dir, names)
	}
}

func TestRunExampleScenario(t *testing.T) {
	cfg := testConfig(t, writeShards(t, []string{"the cat sat", "the dog sat"}))
	cfg.TopK = 2
	report := runPipeline(t, cfg)

	if report.Status != "succeeded" {
		t.Errorf("Status = %q", report.Status)
	}
	if report.Stats.SpillBytes <= 0 {
		t.Errorf("SpillBytes = %d, want the size of the spill file", report.Stats.SpillBytes)
	}
	report.Stats.SpillBytes = 0
	want := models.RunStats{Shards: 1, Articles: 2, Tokens: 6, Bigrams: 4, DistinctUnigrams: 4, DistinctBigrams: 4, MergeSteps: 1, SpillFiles: 1}
	if report.Stats != want {
		t.Errorf("Stats = %+v, want %+v", report.Stats, want)
	}

	topk, err := os.ReadFile(cfg.OutputFile + SuffixTopK)
	if err != nil {
		t.Fatal(err)
	}
	if string(topk) != "1\t2\tsat\n2\t2\tthe\n" {
		t.Errorf("top-k file = %q", topk)
	}

	h, counts := readARPA(t, cfg.OutputFile+SuffixARPA)
	if h != (arpa.Header{TotalUnigrams: 6, DistinctUnigrams: 4, DistinctBigrams: 4}) {
		t.Errorf("header = %+v", h)
	}
	for g, c := range map[models.NGram]uint64{
		models.Unigram("the"):       2,
		models.Unigram("sat"):       2,
		models.Unigram("cat"):       1,
		models.Unigram("dog"):       1,
		models.Bigram("the", "cat"): 1,
		models.Bigram("dog", "sat"): 1,
	} {
		if counts[g] != c {
			t.Errorf("count(%s) = %d, want %d", g, counts[g], c)
		}
	}
	if _, ok := counts[models.Bigram("sat", "the")]; ok {
		t.Error("bigram across articles in output")
	}

	if _, err := os.Stat(cfg.OutputFile + SuffixReport); err != nil {
		t.Errorf("report missing: %v", err)
	}
	assertEmptyDir(t, cfg.WorkDir)
}

func randomShards(seed uint64, shards, articles int) [][]string {
	vocab := strings.Fields("alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau")
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([][]string, shards)
	for s := range out {
		for a := 0; a < articles; a++ {
			n := rng.IntN(15)
			words := make([]string, n)
			for i := range words {
				words[i] = vocab[rng.IntN(len(vocab))]
			}
			out[s] = append(out[s], strings.Join(words, " "))
		}
	}
	return out
}

func TestRunSpillTransparencyAndIdempotence(t *testing.T) {
	input := writeShards(t, randomShards(9, 3, 120)...)

	unbounded := testConfig(t, input)
	unbounded.MemoryBudget = 1 << 30
	unbounded.KeepMerged = true
	first := runPipeline(t, unbounded)

	again := testConfig(t, input)
	again.MemoryBudget = 1 << 30
	again.KeepMerged = true
	second := runPipeline(t, again)

	tiny := testConfig(t, input)
	tiny.MemoryBudget = 300
	tiny.MergeFanIn = 2
	tiny.KeepMerged = true
	spilled := runPipeline(t, tiny)

	if spilled.Stats.SpillFiles <= 3 || spilled.Stats.MergeSteps <= 1 {
		t.Errorf("tiny budget run stats = %+v, want many spills and merge steps", spilled.Stats)
	}

	want := outputHashes(first)
	for _, kind := range []string{manifest.KindARPA, manifest.KindTopK, manifest.KindTopKBigrams, manifest.KindMerged} {
		if want[kind] == "" {
			t.Errorf("no %s output", kind)
		}
		if got := outputHashes(second)[kind]; got != want[kind] {
			t.Errorf("%s differs between identical runs", kind)
		}
		if got := outputHashes(spilled)[kind]; got != want[kind] {
			t.Errorf("%s differs between spilled and unbounded runs", kind)
		}
	}
	if first.Stats.Tokens != spilled.Stats.Tokens || first.Stats.DistinctBigrams != spilled.Stats.DistinctBigrams {
		t.Errorf("stats differ: %+v vs %+v", first.Stats, spilled.Stats)
	}
}

func TestRunShardSplitDoesNotChangeCounts(t *testing.T) {
	shards := randomShards(5, 4, 50)
	var all []string
	for _, s := range shards {
		all = append(all, s...)
	}

	single := runPipeline(t, testConfig(t, writeShards(t, all)))
	multi := runPipeline(t, testConfig(t, writeShards(t, shards...)))

	if outputHashes(single)[manifest.KindARPA] != outputHashes(multi)[manifest.KindARPA] {
		t.Error("splitting the corpus into shards changed the counts")
	}
}

func TestRunMinArticlesAndTopKFilters(t *testing.T) {
	cfg := testConfig(t, writeShards(t, []string{
		"common word rare rare rare",
		"common word",
		"common zzz ab",
	}))
	cfg.DictionaryPath = filepath.Join(t.TempDir(), "dict.txt")
	if err := os.WriteFile(cfg.DictionaryPath, []byte("# words\ncommon\nword\nrare\nab\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.MinArticles = 1
	cfg.MinWordLength = 3
	cfg.TopK = 10
	report := runPipeline(t, cfg)

	h, counts := readARPA(t, cfg.OutputFile+SuffixARPA)
	if _, ok := counts[models.Unigram("rare")]; ok {
		t.Error("n-gram from a single article written despite MinArticles")
	}
	if _, ok := counts[models.Unigram(models.UnknownToken)]; ok {
		t.Error("<unk> from a single article written despite MinArticles")
	}
	if counts[models.Unigram("common")] != 3 || counts[models.Unigram("word")] != 2 {
		t.Errorf("counts = %v", counts)
	}
	if h.DistinctUnigrams != 5 {
		t.Errorf("header distinct unigrams = %d, want 5", h.DistinctUnigrams)
	}

	for _, rec := range report.TopUnigrams {
		if rec.NGram.First == models.UnknownToken || rec.NGram.First == "ab" {
			t.Errorf("top-k contains filtered token %q", rec.NGram.First)
		}
	}
	if report.TopUnigrams[0].NGram.First != "common" {
		t.Errorf("top unigram = %v", report.TopUnigrams[0])
	}
}

func TestRunDefaultConfigRanksEveryToken(t *testing.T) {
	input := writeShards(t, []string{"a a a of of the cat", "a of dog"})
	out := t.TempDir()
	cfg := models.DefaultCountConfig()
	cfg.InputDir = input
	cfg.OutputFile = filepath.Join(out, "counts.txt")
	cfg.WorkDir = filepath.Join(out, "work")
	cfg.TopK = 2
	report := runPipeline(t, cfg)

	want := []models.CountRecord{
		{NGram: models.Unigram("a"), Count: 4, Docs: 2},
		{NGram: models.Unigram("of"), Count: 3, Docs: 2},
	}
	if !reflect.DeepEqual(report.TopUnigrams, want) {
		t.Errorf("TopUnigrams = %v, want %v", report.TopUnigrams, want)
	}

	// Every ranked count is at least every unranked count.
	_, counts := readARPA(t, cfg.OutputFile+SuffixARPA)
	ranked := make(map[models.NGram]bool)
	for _, rec := range report.TopUnigrams {
		ranked[rec.NGram] = true
	}
	lowest := report.TopUnigrams[len(report.TopUnigrams)-1].Count
	for g, c := range counts {
		if g.Order() == 1 && !ranked[g] && c > lowest {
			t.Errorf("%q with count %d left out of top-k (lowest ranked %d)", g, c, lowest)
		}
	}
}

func TestRunZeroTopK(t *testing.T) {
	cfg := testConfig(t, writeShards(t, []string{"a b c"}))
	cfg.TopK = 0
	report := runPipeline(t, cfg)
	if len(report.TopUnigrams) != 0 || len(report.TopBigrams) != 0 {
		t.Errorf("top-k not empty for K=0: %v %v", report.TopUnigrams, report.TopBigrams)
	}
	data, err := os.ReadFile(cfg.OutputFile + SuffixTopK)
	if err != nil || len(data) != 0 {
		t.Errorf("top-k file = %q, %v", data, err)
	}
}

func TestRunCorruptShardFails(t *testing.T) {
	input := writeShards(t, []string{"fine article"})
	bad := filepath.Join(input, "corpus.split.001.gz")
	if err := os.WriteFile(bad, []byte{0x1f, 0x8b, 0x00, 0x01, 0x02}, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t, input)

	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	report, err := p.Run(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageAggregate || !strings.Contains(se.Component, "shard 1") {
		t.Fatalf("Run() error = %v, want aggregate failure of shard 1", err)
	}
	if report.Status != "failed" || report.FailedStage != StageAggregate {
		t.Errorf("report = %+v", report)
	}
	assertEmptyDir(t, cfg.WorkDir)
	for _, suffix := range []string{SuffixARPA, SuffixTopK, SuffixReport} {
		if storage.HasFile(cfg.OutputFile + suffix) {
			t.Errorf("output %s left behind", suffix)
		}
	}
}

func TestRunOutputFailureLeavesNothing(t *testing.T) {
	cfg := testConfig(t, writeShards(t, []string{"the cat sat"}))
	blocker := filepath.Join(filepath.Dir(cfg.OutputFile), "blocked")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.OutputFile = filepath.Join(blocker, "counts.txt")

	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageOutput {
		t.Fatalf("Run() error = %v, want output failure", err)
	}
	assertEmptyDir(t, cfg.WorkDir)
}

func TestRunFreeSpacePreflight(t *testing.T) {
	cfg := testConfig(t, writeShards(t, []string{"a b"}))
	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := storage.FreeSpace(cfg.WorkDir); !ok {
		t.Skip("free space not available on this platform")
	}
	cfg.MinFreeSpace = 1 << 62

	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Run(context.Background())
	if !errors.Is(err, ErrInsufficientSpace) {
		t.Errorf("Run() error = %v, want ErrInsufficientSpace", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CountConfig)
	}{
		{name: "zero memory budget", mutate: func(c *models.CountConfig) { c.MemoryBudget = 0 }},
		{name: "fan-in of one", mutate: func(c *models.CountConfig) { c.MergeFanIn = 1 }},
		{name: "no workers", mutate: func(c *models.CountConfig) { c.Workers = 0 }},
		{name: "unknown language", mutate: func(c *models.CountConfig) { c.Language = "qq" }},
		{name: "no output", mutate: func(c *models.CountConfig) { c.OutputFile = "" }},
		{name: "missing dictionary", mutate: func(c *models.CountConfig) { c.DictionaryPath = filepath.Join(c.OutputFile, "none.txt") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, t.TempDir())
			tt.mutate(&cfg)
			if _, err := New(cfg, testLogger()); !errors.Is(err, models.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
