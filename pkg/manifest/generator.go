package manifest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/mapreduce"
	"github.com/dtnitsch/wiki-ngrams/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Report formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// WriteTopK writes a ranked list as "rank<TAB>count<TAB>ngram" lines.
// Bigram tokens are separated by a single space.
func WriteTopK(w io.Writer, recs []models.CountRecord) error {
	for i, rec := range recs {
		if _, err := fmt.Fprintf(w, "%d\t%d\t%s\n", i+1, rec.Count, rec.NGram.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteWords writes one token per line, the top-k-words file layout.
func WriteWords(w io.Writer, recs []models.CountRecord) error {
	for _, rec := range recs {
		if _, err := fmt.Fprintln(w, rec.NGram.String()); err != nil {
			return err
		}
	}
	return nil
}

// NewSummary wraps a report with its keyword lists.
func NewSummary(report models.RunReport) Summary {
	return Summary{
		RunReport:         report,
		TopKeywords:       mapreduce.TopKeywords(head(report.TopUnigrams, SummaryKeywords)),
		TopBigramKeywords: mapreduce.TopKeywords(head(report.TopBigrams, SummaryKeywords)),
	}
}

func head(recs []models.CountRecord, n int) []models.CountRecord {
	return recs[:min(n, len(recs))]
}

// Encode renders a summary as YAML or JSON.
func Encode(summary Summary, format string) ([]byte, error) {
	switch format {
	case FormatYAML, "":
		data, err := yaml.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("error marshalling report: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("error marshalling report: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("%w: unknown report format %q", models.ErrInvalidConfig, format)
}

// SaveReport writes the YAML summary to path.
func SaveReport(path string, summary Summary) error {
	data, err := Encode(summary, FormatYAML)
	if err != nil {
		return err
	}
	if err := storage.SaveFile(path, data); err != nil {
		return fmt.Errorf("error saving report: %w", err)
	}
	return nil
}
