package mapreduce

import (
	"container/heap"
	"fmt"
	"io"
	"slices"

	"github.com/dtnitsch/wiki-ngrams/models"
)

// recordHeap keeps the worst-ranked record at the root: lowest count, and on
// equal counts the n-gram that sorts last.
type recordHeap []models.CountRecord

func (h recordHeap) Len() int           { return len(h) }
func (h recordHeap) Less(i, j int) bool { return h[j].Ranks(h[i]) }
func (h recordHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *recordHeap) Push(x any)        { *h = append(*h, x.(models.CountRecord)) }
func (h *recordHeap) Pop() any {
	old := *h
	n := len(old)
	rec := old[n-1]
	*h = old[:n-1]
	return rec
}

// Selector keeps the k highest-count records of a stream in O(k) memory.
type Selector struct {
	k    int
	h    recordHeap
	seen int64
}

// NewSelector creates a selector for the top k records. k <= 0 selects
// nothing.
func NewSelector(k int) *Selector {
	if k < 0 {
		k = 0
	}
	return &Selector{k: k, h: make(recordHeap, 0, min(k, 1<<16))}
}

// Offer considers one record. Once the selector is full, a record must rank
// strictly ahead of the current minimum to replace it.
func (s *Selector) Offer(rec models.CountRecord) {
	s.seen++
	if s.k == 0 {
		return
	}
	if len(s.h) < s.k {
		heap.Push(&s.h, rec)
		return
	}
	if rec.Ranks(s.h[0]) {
		s.h[0] = rec
		heap.Fix(&s.h, 0)
	}
}

// Seen returns how many records were offered.
func (s *Selector) Seen() int64 {
	return s.seen
}

// Result returns the selected records, highest count first and ascending
// n-gram on ties. The selector can keep receiving records afterwards.
func (s *Selector) Result() []models.CountRecord {
	out := make([]models.CountRecord, len(s.h))
	copy(out, s.h)
	slices.SortFunc(out, func(a, b models.CountRecord) int {
		switch {
		case a.Ranks(b):
			return -1
		case b.Ranks(a):
			return 1
		}
		return 0
	})
	return out
}

// TopKeywords formats records as "ngram:count" strings.
func TopKeywords(recs []models.CountRecord) []string {
	keywords := make([]string, len(recs))
	for i, rec := range recs {
		keywords[i] = fmt.Sprintf("%s:%d", rec.NGram.String(), rec.Count)
	}
	return keywords
}

// PrintTopKeywords prints up to n records in a numbered list format.
func PrintTopKeywords(w io.Writer, recs []models.CountRecord, n int) {
	limit := min(n, len(recs))
	for i := 0; i < limit; i++ {
		fmt.Fprintf(w, "%d. %s: %d\n", i+1, recs[i].NGram.String(), recs[i].Count)
	}
}
