package source

import (
	"encoding/json"
	"log/slog"

	"github.com/dtnitsch/wiki-ngrams/models"
)

// cirrusSource reads a CirrusSearch dump: JSON lines alternating index
// actions and page bodies. Only lines carrying a string "text" field are
// documents.
type cirrusSource struct {
	r       *fileReader
	logger  *slog.Logger
	line    int64
	next    int64
	skipped int64
}

type cirrusPage struct {
	Title string  `json:"title"`
	Text  *string `json:"text"`
}

func openCirrus(path string, logger *slog.Logger) (*cirrusSource, error) {
	r, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return &cirrusSource{r: r, logger: logger}, nil
}

func (s *cirrusSource) Next() (models.Document, error) {
	for {
		line, err := readLine(s.r.Reader)
		if err != nil {
			return models.Document{}, err
		}
		s.line++

		var page cirrusPage
		if err := json.Unmarshal(line, &page); err != nil {
			s.skipped++
			s.logger.Warn("Skipping malformed document", "line", s.line, "error", err)
			continue
		}
		if page.Text == nil {
			continue
		}
		doc := models.Document{Hint: s.next, Title: page.Title, Text: *page.Text}
		s.next++
		return doc, nil
	}
}

func (s *cirrusSource) Skipped() int64 { return s.skipped }
func (s *cirrusSource) Close() error   { return s.r.Close() }
