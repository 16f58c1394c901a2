package detector

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/pemistahl/lingua-go"
)

// sampleBytes bounds how much of an article is fed to the detector.
const sampleBytes = 2048

// DefaultCandidates are the languages an article is compared against when no
// explicit candidate list is given. The target language is always added.
var DefaultCandidates = []string{"en", "de", "fr", "es", "it", "pt", "nl", "pl", "ru", "sv"}

// ParseLanguage resolves an ISO 639-1 code such as "en" or "PL".
func ParseLanguage(code string) (lingua.Language, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return lingua.Unknown, fmt.Errorf("%w: empty language code", models.ErrInvalidConfig)
	}
	for _, lang := range lingua.AllLanguages() {
		if strings.EqualFold(lang.IsoCode639_1().String(), code) {
			return lang, nil
		}
	}
	return lingua.Unknown, fmt.Errorf("%w: unknown ISO 639-1 language code %q", models.ErrInvalidConfig, code)
}

// LanguageFilter keeps articles written in one target language. It is safe
// for concurrent use.
type LanguageFilter struct {
	target   lingua.Language
	detector lingua.LanguageDetector
}

// NewLanguageFilter builds a filter for the target language, distinguishing
// it from the candidate languages.
func NewLanguageFilter(target string, candidates []string) (*LanguageFilter, error) {
	targetLang, err := ParseLanguage(target)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}

	langs := []lingua.Language{targetLang}
	for _, code := range candidates {
		lang, err := ParseLanguage(code)
		if err != nil {
			return nil, err
		}
		if !containsLanguage(langs, lang) {
			langs = append(langs, lang)
		}
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("%w: language filter needs at least one candidate besides %s", models.ErrInvalidConfig, target)
	}

	return &LanguageFilter{
		target:   targetLang,
		detector: lingua.NewLanguageDetectorBuilder().FromLanguages(langs...).Build(),
	}, nil
}

// Accept reports whether text is in the target language. Text the detector
// cannot decide on is accepted.
func (f *LanguageFilter) Accept(text string) bool {
	lang, ok := f.detector.DetectLanguageOf(sample(text))
	if !ok {
		return true
	}
	return lang == f.target
}

// Target returns the lowercase ISO 639-1 code of the target language.
func (f *LanguageFilter) Target() string {
	return strings.ToLower(f.target.IsoCode639_1().String())
}

func containsLanguage(langs []lingua.Language, lang lingua.Language) bool {
	for _, l := range langs {
		if l == lang {
			return true
		}
	}
	return false
}

// sample cuts text to at most sampleBytes without splitting a rune.
func sample(text string) string {
	if len(text) <= sampleBytes {
		return text
	}
	cut := sampleBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
