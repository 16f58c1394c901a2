// Package source reads raw documents for the splitter and the article shards
// it produces.
package source

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dtnitsch/wiki-ngrams/models"
)

// Document formats understood by Open.
const (
	FormatCirrus = "cirrus"
	FormatLines  = "lines"
	FormatHTML   = "html"
)

// Formats lists the supported document formats.
var Formats = []string{FormatCirrus, FormatLines, FormatHTML}

var gzipMagic = []byte{0x1f, 0x8b}

// Source yields raw documents in input order. Next returns io.EOF once the
// input is exhausted. Documents that cannot be decoded are skipped and
// counted, never returned as errors.
type Source interface {
	Next() (models.Document, error)
	Skipped() int64
	Close() error
}

// Open opens a document source of the given format.
func Open(path, format string, logger *slog.Logger) (Source, error) {
	switch format {
	case FormatCirrus:
		return openCirrus(path, logger)
	case FormatLines:
		return openLines(path)
	case FormatHTML:
		return openHTML(path, logger)
	}
	return nil, fmt.Errorf("%w: unknown document format %q", models.ErrInvalidConfig, format)
}

type fileReader struct {
	*bufio.Reader
	file *os.File
	gz   *gzip.Reader
}

// OpenFile opens a plain or gzip compressed text file. Compression is detected
// from the content, not the file name.
func OpenFile(path string) (io.ReadCloser, error) {
	r, err := openFile(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func openFile(path string) (*fileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(f, 1<<20)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !bytes.Equal(head, gzipMagic) {
		return &fileReader{Reader: br, file: f}, nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	return &fileReader{Reader: bufio.NewReaderSize(gz, 1<<20), file: f, gz: gz}, nil
}

func (r *fileReader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.file.Close()
}

// readLine returns the next line without its terminator. Lines have no
// length limit.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if len(line) > 0 {
		line = bytes.TrimSuffix(line, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		return line, nil
	}
	return nil, err
}
