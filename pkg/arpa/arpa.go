// Package arpa reads and writes the gzip n-gram count file: an ARPA-style
// text layout with a \data\ header, a \1-grams: section of "count<TAB>token"
// lines, a \2-grams: section of "count<TAB>token1<TAB>token2" lines and a
// closing \end\ marker.
package arpa

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/source"
)

const (
	markData     = `\data\`
	markUnigrams = `\1-grams:`
	markBigrams  = `\2-grams:`
	markEnd      = `\end\`
)

var (
	// ErrFormat reports a file that does not follow the layout.
	ErrFormat = errors.New("malformed n-gram file")
	// ErrStop can be returned by a Read callback to end reading early.
	ErrStop = errors.New("stop reading")
)

// Header holds the totals written before the sections.
type Header struct {
	TotalUnigrams    uint64
	DistinctUnigrams int64
	DistinctBigrams  int64
}

// Writer streams records into a gzip n-gram file. Records must arrive with
// all unigrams before all bigrams.
type Writer struct {
	gz      *gzip.Writer
	bw      *bufio.Writer
	section int
	written [3]int64
}

// NewWriter writes the header and opens the unigram section. name is stored
// in the gzip header; the modification time is left zero so identical input
// gives identical bytes.
func NewWriter(w io.Writer, name string, h Header) (*Writer, error) {
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	gz.Name = name
	aw := &Writer{gz: gz, bw: bufio.NewWriterSize(gz, 1<<20), section: 1}
	fmt.Fprintln(aw.bw, markData)
	fmt.Fprintf(aw.bw, "total unigrams = %d\n", h.TotalUnigrams)
	fmt.Fprintf(aw.bw, "ngram 1 = %d\n", h.DistinctUnigrams)
	fmt.Fprintf(aw.bw, "ngram 2 = %d\n", h.DistinctBigrams)
	fmt.Fprintln(aw.bw)
	if _, err := fmt.Fprintln(aw.bw, markUnigrams); err != nil {
		return nil, err
	}
	return aw, nil
}

// Write appends one record to its section.
func (w *Writer) Write(rec models.CountRecord) error {
	order := rec.NGram.Order()
	if order < w.section {
		return fmt.Errorf("unigram %q written after the bigram section started", rec.NGram.String())
	}
	if order == 2 && w.section == 1 {
		w.openBigrams()
	}
	w.written[order]++

	var err error
	if order == 1 {
		_, err = fmt.Fprintf(w.bw, "%d\t%s\n", rec.Count, rec.NGram.First)
	} else {
		_, err = fmt.Fprintf(w.bw, "%d\t%s\t%s\n", rec.Count, rec.NGram.First, rec.NGram.Second)
	}
	return err
}

func (w *Writer) openBigrams() {
	fmt.Fprintln(w.bw)
	fmt.Fprintln(w.bw, markBigrams)
	w.section = 2
}

// Written returns how many records of the given order were written.
func (w *Writer) Written(order int) int64 {
	return w.written[order]
}

// Close ends the file. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.section == 1 {
		w.openBigrams()
	}
	fmt.Fprintln(w.bw)
	if _, err := fmt.Fprintln(w.bw, markEnd); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.gz.Close()
}

// ReadFile opens a plain or gzip n-gram file and streams it through Read.
func ReadFile(path string, emit func(models.CountRecord) error) (Header, error) {
	f, err := source.OpenFile(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	return Read(f, emit)
}

// Read parses an uncompressed n-gram file, passing every record to emit in
// file order. If emit returns ErrStop, reading ends without error.
func Read(r io.Reader, emit func(models.CountRecord) error) (Header, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	var h Header
	lineNo := 0
	section := 0
	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			if errors.Is(err, io.EOF) {
				return h, fmt.Errorf("%w: missing %s marker", ErrFormat, markEnd)
			}
			return h, err
		}
		lineNo++
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == markData && section == 0:
			continue
		case line == markUnigrams:
			section = 1
			continue
		case line == markBigrams:
			section = 2
			continue
		case line == markEnd:
			return h, nil
		case line == "":
			continue
		}

		if section == 0 {
			if err := parseHeaderLine(line, &h); err != nil {
				return h, fmt.Errorf("%w: line %d: %v", ErrFormat, lineNo, err)
			}
			continue
		}

		rec, err := parseRecord(line, section)
		if err != nil {
			return h, fmt.Errorf("%w: line %d: %v", ErrFormat, lineNo, err)
		}
		if err := emit(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return h, nil
			}
			return h, err
		}
	}
}

func parseHeaderLine(line string, h *Header) error {
	key, value, ok := strings.Cut(line, " = ")
	if !ok {
		return fmt.Errorf("unexpected header line %q", line)
	}
	var err error
	switch key {
	case "total unigrams":
		h.TotalUnigrams, err = strconv.ParseUint(value, 10, 64)
	case "ngram 1":
		h.DistinctUnigrams, err = strconv.ParseInt(value, 10, 64)
	case "ngram 2":
		h.DistinctBigrams, err = strconv.ParseInt(value, 10, 64)
	default:
		return fmt.Errorf("unknown header field %q", key)
	}
	return err
}

func parseRecord(line string, section int) (models.CountRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != section+1 {
		return models.CountRecord{}, fmt.Errorf("want %d fields, got %d", section+1, len(fields))
	}
	count, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return models.CountRecord{}, err
	}
	g := models.Unigram(fields[1])
	if section == 2 {
		g = models.Bigram(fields[1], fields[2])
	}
	return models.CountRecord{NGram: g, Count: count}, nil
}
