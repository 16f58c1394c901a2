package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ListShards returns the shard files of a split directory: regular files
// whose name contains "split", in name order. A shard's index is its
// position in the result.
func ListShards(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read shard directory: %w", err)
	}
	var shards []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.Contains(e.Name(), "split") {
			shards = append(shards, filepath.Join(dir, e.Name()))
		}
	}
	return shards, nil
}

// ArticleReader iterates the articles of one shard file, one per line.
type ArticleReader struct {
	r    *fileReader
	text string
	err  error
}

// OpenShard opens a shard file for reading.
func OpenShard(path string) (*ArticleReader, error) {
	r, err := openFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard: %w", err)
	}
	return &ArticleReader{r: r}, nil
}

// Next advances to the next article. Blank lines are empty articles.
func (a *ArticleReader) Next() bool {
	if a.err != nil {
		return false
	}
	line, err := readLine(a.r.Reader)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			a.err = err
		}
		return false
	}
	a.text = string(line)
	return true
}

// Text returns the current article.
func (a *ArticleReader) Text() string { return a.text }

// Err returns the first read error.
func (a *ArticleReader) Err() error { return a.err }

func (a *ArticleReader) Close() error { return a.r.Close() }
