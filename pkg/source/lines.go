package source

import (
	"github.com/dtnitsch/wiki-ngrams/models"
)

// linesSource treats every non-blank line as one document.
type linesSource struct {
	r    *fileReader
	next int64
}

func openLines(path string) (*linesSource, error) {
	r, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return &linesSource{r: r}, nil
}

func (s *linesSource) Next() (models.Document, error) {
	for {
		line, err := readLine(s.r.Reader)
		if err != nil {
			return models.Document{}, err
		}
		if len(line) == 0 {
			continue
		}
		doc := models.Document{Hint: s.next, Text: string(line)}
		s.next++
		return doc, nil
	}
}

func (s *linesSource) Skipped() int64 { return 0 }
func (s *linesSource) Close() error   { return s.r.Close() }
