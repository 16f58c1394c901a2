// Package splitter partitions a document dump into gzip shard files of
// normalized article text, one article per line.
package splitter

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/detector"
	"github.com/dtnitsch/wiki-ngrams/pkg/source"
	"golang.org/x/text/unicode/norm"
)

const progressEvery = 10000

// Filter decides whether an article is kept.
type Filter interface {
	Accept(text string) bool
}

type Splitter struct {
	cfg    models.SplitConfig
	filter Filter
	logger *slog.Logger
}

// New validates cfg and prepares the language filter when detection is on.
func New(cfg models.SplitConfig, logger *slog.Logger) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Splitter{cfg: cfg, logger: logger}
	if cfg.DetectLanguage {
		f, err := detector.NewLanguageFilter(cfg.Language, nil)
		if err != nil {
			return nil, err
		}
		s.filter = f
	}
	return s, nil
}

// WithFilter replaces the language filter.
func (s *Splitter) WithFilter(f Filter) *Splitter {
	s.filter = f
	return s
}

// Normalize applies NFKC and folds line breaks into spaces so an article
// fits on one line.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	if !strings.ContainsAny(text, "\r\n") {
		return text
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, text)
}

// PieceName returns the shard file name for piece i of an input.
func PieceName(inputPath string, i int) string {
	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s.split.%03d", base, i)
}

type piece struct {
	file *os.File
	buf  *bufio.Writer
	gz   *gzip.Writer
}

func (p *piece) close() error {
	if err := p.gz.Close(); err != nil {
		p.file.Close()
		return err
	}
	if err := p.buf.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}

// Run splits the input. The output directory is deleted and recreated; on
// failure it is removed again so no partial shards are left behind.
func (s *Splitter) Run(ctx context.Context) (stats models.SplitStats, err error) {
	src, err := source.Open(s.cfg.InputPath, s.cfg.Format, s.logger)
	if err != nil {
		return stats, fmt.Errorf("failed to open input: %w", err)
	}
	defer src.Close()

	if _, statErr := os.Stat(s.cfg.OutputDir); statErr == nil {
		s.logger.Info("Deleting output directory", "path", s.cfg.OutputDir)
		if err := os.RemoveAll(s.cfg.OutputDir); err != nil {
			return stats, fmt.Errorf("failed to delete output directory: %w", err)
		}
	}
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create output directory: %w", err)
	}

	pieces := make([]*piece, 0, s.cfg.Pieces)
	defer func() {
		if err != nil {
			for _, p := range pieces {
				p.file.Close()
			}
			os.RemoveAll(s.cfg.OutputDir)
		}
	}()
	for i := 0; i < s.cfg.Pieces; i++ {
		name := PieceName(s.cfg.InputPath, i)
		f, err := os.Create(filepath.Join(s.cfg.OutputDir, name+".gz"))
		if err != nil {
			return stats, fmt.Errorf("failed to create piece %d: %w", i, err)
		}
		buf := bufio.NewWriterSize(f, 1<<20)
		gz, _ := gzip.NewWriterLevel(buf, gzip.BestCompression)
		gz.Name = name
		pieces = append(pieces, &piece{file: f, buf: buf, gz: gz})
	}

	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed))
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		doc, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read document %d: %w", stats.Documents, err)
		}
		stats.Documents++

		text := Normalize(doc.Text)
		if s.cfg.MinArticleWords > 0 && len(strings.Fields(text)) < s.cfg.MinArticleWords {
			stats.FilteredShort++
			continue
		}
		if s.filter != nil && !s.filter.Accept(text) {
			stats.FilteredLanguage++
			continue
		}

		p := pieces[rng.IntN(len(pieces))]
		if _, err := io.WriteString(p.gz, text); err != nil {
			return stats, fmt.Errorf("failed to write article: %w", err)
		}
		if _, err := p.gz.Write([]byte{'\n'}); err != nil {
			return stats, fmt.Errorf("failed to write article: %w", err)
		}
		stats.Articles++
		if stats.Articles%progressEvery == 0 {
			s.logger.Info("Split progress", "articles", humanize.Comma(stats.Articles), "documents", humanize.Comma(stats.Documents))
		}
	}

	for i, p := range pieces {
		if err := p.close(); err != nil {
			return stats, fmt.Errorf("failed to finish piece %d: %w", i, err)
		}
	}
	stats.SkippedMalformed = src.Skipped()
	stats.Pieces = len(pieces)
	return stats, nil
}
