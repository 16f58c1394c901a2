package pipeline

import (
	"fmt"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/arpa"
	"github.com/dtnitsch/wiki-ngrams/pkg/mapreduce"
	"github.com/dtnitsch/wiki-ngrams/pkg/tokenizer"
)

// TopWords streams the unigram section of an n-gram file through a top-k
// selector. <unk> and words shorter than minWordLength runes are skipped.
func TopWords(path string, k, minWordLength int) ([]models.CountRecord, error) {
	sel := mapreduce.NewSelector(k)
	_, err := arpa.ReadFile(path, func(rec models.CountRecord) error {
		if rec.NGram.Order() != 1 {
			return arpa.ErrStop
		}
		if rec.NGram.First == models.UnknownToken || !tokenizer.IsWordLongEnough(rec.NGram.First, minWordLength) {
			return nil
		}
		sel.Offer(rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sel.Result(), nil
}
