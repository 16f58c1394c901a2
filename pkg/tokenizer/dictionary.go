package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Dictionary is a set of known words.
type Dictionary map[string]struct{}

// Contains reports whether word is in the dictionary.
func (d Dictionary) Contains(word string) bool {
	_, ok := d[word]
	return ok
}

// LoadDictionary reads a word list file.
func LoadDictionary(path string) (Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()

	dict, err := ReadDictionary(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}
	return dict, nil
}

// ReadDictionary parses one word per line. Lines starting with '#' are
// comments. Words are NFKC-normalized, lowercased and trimmed of punctuation
// so they match tokenizer output.
func ReadDictionary(r io.Reader) (Dictionary, error) {
	dict := make(Dictionary)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := norm.NFKC.String(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		word := normalizeWord(strings.TrimSpace(line))
		if word == "" {
			continue
		}
		dict[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return dict, nil
}

// IsWordLongEnough reports whether word has at least n runes.
func IsWordLongEnough(word string, n int) bool {
	count := 0
	for range word {
		count++
		if count >= n {
			return true
		}
	}
	return count >= n
}
