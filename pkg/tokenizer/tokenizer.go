// Package tokenizer turns normalized article text into lowercase word tokens.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/segment"
	"github.com/dtnitsch/wiki-ngrams/models"
)

// ErrMalformedArticle is returned for text that cannot be tokenized.
var ErrMalformedArticle = errors.New("malformed article")

// MaxTokenBytes is the longest token accepted. Articles with a longer token
// (base64 blobs, runaway markup) are rejected as malformed, which keeps every
// bigram record far below the spill record limit.
const MaxTokenBytes = 4096

// Tokenizer splits text on Unicode word boundaries (UAX #29). It is safe for
// concurrent use once built.
type Tokenizer struct {
	language string
	dict     Dictionary
}

// New creates a Tokenizer for a language. A nil dictionary keeps every token;
// otherwise tokens missing from it become models.UnknownToken.
func New(language string, dict Dictionary) *Tokenizer {
	return &Tokenizer{language: language, dict: dict}
}

// Language returns the ISO 639-1 code the tokenizer was built for.
func (t *Tokenizer) Language() string {
	return t.language
}

// Tokens returns the ordered word tokens of text. The result is deterministic
// for a given text and dictionary.
func (t *Tokenizer) Tokens(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrMalformedArticle)
	}

	var tokens []string
	seg := segment.NewWordSegmenterDirect([]byte(text))
	for seg.Segment() {
		if seg.Type() == segment.None {
			continue
		}
		word := normalizeWord(seg.Text())
		if word == "" {
			continue
		}
		if len(word) > MaxTokenBytes {
			return nil, fmt.Errorf("%w: token of %d bytes exceeds %d", ErrMalformedArticle, len(word), MaxTokenBytes)
		}
		if t.dict != nil && !t.dict.Contains(word) {
			word = models.UnknownToken
		}
		tokens = append(tokens, word)
	}
	if err := seg.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArticle, err)
	}
	return tokens, nil
}

// normalizeWord lowercases a segment and trims punctuation from its edges,
// keeping inner apostrophes and hyphens.
func normalizeWord(word string) string {
	word = strings.ToLower(word)
	return strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})
}
