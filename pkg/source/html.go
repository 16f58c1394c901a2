package source

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/parser"
)

// htmlSource reads every .html or .htm file of a directory, in name order,
// and extracts the main article text of each page.
type htmlSource struct {
	files   []string
	pos     int
	parser  *parser.Parser
	logger  *slog.Logger
	next    int64
	skipped int64
}

func openHTML(dir string, logger *slog.Logger) (*htmlSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read html directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.Type().IsRegular() && (ext == ".html" || ext == ".htm") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return &htmlSource{files: files, parser: &parser.Parser{}, logger: logger}, nil
}

func (s *htmlSource) Next() (models.Document, error) {
	for s.pos < len(s.files) {
		path := s.files[s.pos]
		s.pos++

		content, err := os.ReadFile(path)
		if err != nil {
			return models.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return models.Document{}, err
		}
		pageURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

		doc, err := s.parser.ParseDocument(pageURL, string(content))
		if err != nil {
			s.skipped++
			s.logger.Warn("Skipping unparseable page", "path", path, "error", err)
			continue
		}
		doc.Hint = s.next
		s.next++
		return doc, nil
	}
	return models.Document{}, io.EOF
}

func (s *htmlSource) Skipped() int64 { return s.skipped }
func (s *htmlSource) Close() error   { return nil }
