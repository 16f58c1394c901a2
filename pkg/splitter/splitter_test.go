package splitter

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeInput(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readPieces(t *testing.T, dir string) (map[string][]byte, []string) {
	t.Helper()
	shards, err := source.ListShards(dir)
	if err != nil {
		t.Fatal(err)
	}
	raw := make(map[string][]byte)
	var articles []string
	for _, path := range shards {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		raw[filepath.Base(path)] = data

		r, err := source.OpenShard(path)
		if err != nil {
			t.Fatal(err)
		}
		for r.Next() {
			articles = append(articles, r.Text())
		}
		r.Close()
	}
	return raw, articles
}

func splitConfig(input, output string) models.SplitConfig {
	return models.SplitConfig{
		InputPath: input,
		OutputDir: output,
		Pieces:    4,
		Format:    source.FormatLines,
		Seed:      models.DefaultSeed,
	}
}

func TestRunKeepsEveryArticle(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("word ", i%7+1)+"end")
	}
	input := writeInput(t, lines)
	out := filepath.Join(t.TempDir(), "split")

	s, err := New(splitConfig(input, out), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Documents != 200 || stats.Articles != 200 || stats.Pieces != 4 {
		t.Errorf("stats = %+v", stats)
	}

	raw, articles := readPieces(t, out)
	if len(raw) != 4 {
		t.Fatalf("got %d pieces, want 4", len(raw))
	}
	for name := range raw {
		if !strings.HasPrefix(name, "corpus.split.") || !strings.HasSuffix(name, ".gz") {
			t.Errorf("unexpected piece name %q", name)
		}
	}
	slices.Sort(articles)
	want := slices.Clone(lines)
	slices.Sort(want)
	if !slices.Equal(articles, want) {
		t.Error("articles across pieces differ from input")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, strings.Repeat("x", i%13+1))
	}
	input := writeInput(t, lines)

	run := func() map[string][]byte {
		out := filepath.Join(t.TempDir(), "split")
		s, err := New(splitConfig(input, out), testLogger())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		raw, _ := readPieces(t, out)
		return raw
	}

	first, second := run(), run()
	for name, data := range first {
		if !bytes.Equal(data, second[name]) {
			t.Errorf("piece %s differs between runs", name)
		}
	}

	r, err := gzip.NewReader(bytes.NewReader(first["corpus.split.000.gz"]))
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "corpus.split.000" {
		t.Errorf("gzip header name = %q", r.Name)
	}
}

func TestRunFilters(t *testing.T) {
	input := writeInput(t, []string{"one two three", "short", "ﬁne ﬁsh swim here", "deutsch text hier"})
	out := filepath.Join(t.TempDir(), "split")

	cfg := splitConfig(input, out)
	cfg.MinArticleWords = 3
	s, err := New(cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	s.WithFilter(rejectFilter("deutsch"))

	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.FilteredShort != 1 || stats.FilteredLanguage != 1 || stats.Articles != 2 {
		t.Errorf("stats = %+v", stats)
	}

	_, articles := readPieces(t, out)
	slices.Sort(articles)
	want := []string{"fine fish swim here", "one two three"}
	if !slices.Equal(articles, want) {
		t.Errorf("articles = %q, want %q", articles, want)
	}
}

type rejectFilter string

func (f rejectFilter) Accept(text string) bool {
	return !strings.Contains(text, string(f))
}

func TestRunReplacesOutputDir(t *testing.T) {
	input := writeInput(t, []string{"a b c"})
	out := filepath.Join(t.TempDir(), "split")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(out, "old.split.999.gz")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(splitConfig(input, out), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale piece survived the split")
	}
}

func TestRunMissingInputLeavesNoOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "split")
	s, err := New(splitConfig(filepath.Join(t.TempDir(), "missing.txt"), out), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing input")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output directory created for failed split")
	}
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.SplitConfig)
	}{
		{name: "zero pieces", mutate: func(c *models.SplitConfig) { c.Pieces = 0 }},
		{name: "too many pieces", mutate: func(c *models.SplitConfig) { c.Pieces = models.MaxPieces + 1 }},
		{name: "unknown format", mutate: func(c *models.SplitConfig) { c.Format = "xml" }},
		{name: "negative min words", mutate: func(c *models.SplitConfig) { c.MinArticleWords = -1 }},
		{name: "detection without language", mutate: func(c *models.SplitConfig) { c.DetectLanguage = true }},
		{name: "detection with bad language", mutate: func(c *models.SplitConfig) { c.DetectLanguage, c.Language = true, "zz" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := splitConfig("in.txt", "out")
			tt.mutate(&cfg)
			if _, err := New(cfg, testLogger()); !errors.Is(err, models.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "plain", want: "plain"},
		{in: "line\none\r\ntwo", want: "line one  two"},
		{in: "ｆｕｌｌ", want: "full"},
		{in: "ﬁ", want: "fi"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
