package models

import "strings"

// UnknownToken replaces tokens that are not in the dictionary. It never
// appears in tokenized text because punctuation is trimmed from tokens.
const UnknownToken = "<unk>"

// NGram is a unigram (Second == "") or a bigram of two adjacent tokens from
// the same article. Tokens are never empty.
type NGram struct {
	First  string `json:"first" yaml:"first"`
	Second string `json:"second,omitempty" yaml:"second,omitempty"`
}

// Unigram builds a one-token NGram.
func Unigram(token string) NGram {
	return NGram{First: token}
}

// Bigram builds a two-token NGram.
func Bigram(first, second string) NGram {
	return NGram{First: first, Second: second}
}

// Order returns 1 for unigrams and 2 for bigrams.
func (g NGram) Order() int {
	if g.Second == "" {
		return 1
	}
	return 2
}

// String joins the tokens with a single space.
func (g NGram) String() string {
	if g.Second == "" {
		return g.First
	}
	return g.First + " " + g.Second
}

// Compare orders n-grams by order first, then by token bytes.
// All unigrams sort before all bigrams.
func (g NGram) Compare(o NGram) int {
	if go1, oo := g.Order(), o.Order(); go1 != oo {
		if go1 < oo {
			return -1
		}
		return 1
	}
	if c := strings.Compare(g.First, o.First); c != 0 {
		return c
	}
	return strings.Compare(g.Second, o.Second)
}

// Less reports whether g sorts before o.
func (g NGram) Less(o NGram) bool {
	return g.Compare(o) < 0
}

// CountRecord is the unit of aggregation: how often an n-gram occurred and
// in how many articles it occurred at least once.
type CountRecord struct {
	NGram NGram  `json:"ngram" yaml:"ngram"`
	Count uint64 `json:"count" yaml:"count"`
	Docs  uint64 `json:"docs" yaml:"docs"`
}

// Ranks reports whether r belongs ahead of o in a top-k listing: higher
// count first, ascending n-gram on ties.
func (r CountRecord) Ranks(o CountRecord) bool {
	if r.Count != o.Count {
		return r.Count > o.Count
	}
	return r.NGram.Less(o.NGram)
}
