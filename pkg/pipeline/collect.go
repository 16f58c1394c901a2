package pipeline

import (
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/mapreduce"
	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
	"github.com/dtnitsch/wiki-ngrams/pkg/tokenizer"
)

// collector consumes the merged stream once: it stores it for the output
// pass, feeds the top-k selectors and keeps the totals.
type collector struct {
	merged        *spill.Writer
	unigrams      *mapreduce.Selector
	bigrams       *mapreduce.Selector
	minWordLength int

	totalUnigrams    uint64
	distinctUnigrams int64
	distinctBigrams  int64
}

func newCollector(merged *spill.Writer, topK, minWordLength int) *collector {
	return &collector{
		merged:        merged,
		unigrams:      mapreduce.NewSelector(topK),
		bigrams:       mapreduce.NewSelector(topK),
		minWordLength: minWordLength,
	}
}

func (c *collector) emit(rec models.CountRecord) error {
	if err := c.merged.Write(rec); err != nil {
		return err
	}
	if rec.NGram.Order() == 1 {
		c.totalUnigrams += rec.Count
		c.distinctUnigrams++
		if c.ranked(rec.NGram.First) {
			c.unigrams.Offer(rec)
		}
		return nil
	}
	c.distinctBigrams++
	if c.ranked(rec.NGram.First) && c.ranked(rec.NGram.Second) {
		c.bigrams.Offer(rec)
	}
	return nil
}

// ranked reports whether a token may appear in a top-k list. Without a
// minimum word length every n-gram of the merged stream is ranked; with one,
// the lists follow the top-k-words rules and drop <unk> as well.
func (c *collector) ranked(token string) bool {
	if c.minWordLength == 0 {
		return true
	}
	return token != models.UnknownToken && tokenizer.IsWordLongEnough(token, c.minWordLength)
}
