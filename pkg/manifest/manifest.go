package manifest

import (
	"github.com/dtnitsch/wiki-ngrams/models"
)

// SummaryKeywords is how many top unigrams the printed summary lists.
const SummaryKeywords = 25

// Summary is the run report as printed and saved: the report itself plus a
// short keyword list, so a reader does not need to open the top-k files.
type Summary struct {
	models.RunReport `yaml:",inline"`
	TopKeywords       []string `json:"top_keywords,omitempty" yaml:"top_keywords,omitempty"`
	TopBigramKeywords []string `json:"top_bigrams,omitempty" yaml:"top_bigrams,omitempty"`
}

// Output kinds recorded in the report.
const (
	KindARPA        = "arpa"
	KindTopK        = "topk"
	KindTopKBigrams = "topk-bigrams"
	KindMerged      = "merged"
	KindReport      = "report"
)
