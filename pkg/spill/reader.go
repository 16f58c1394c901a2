package spill

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dtnitsch/wiki-ngrams/models"
)

// Reader iterates over the records of a spill file in order and verifies
// ordering, record validity and the trailer while doing so.
//
//	r, err := spill.Open(path)
//	...
//	defer r.Close()
//	for r.Next() {
//		rec := r.Record()
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	id      ID
	path    string
	f       *os.File
	br      *bufio.Reader
	buf     []byte
	rec     models.CountRecord
	records uint64
	err     error
	eof     bool
}

// Open opens a spill file and validates its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Op: "open", Err: err}
	}
	r := &Reader{path: path, f: f, br: bufio.NewReaderSize(f, 1<<20)}

	var m [len(magic)]byte
	if _, err := io.ReadFull(r.br, m[:]); err != nil || string(m[:]) != magic {
		f.Close()
		return nil, &Error{Path: path, Op: "open", Err: fmt.Errorf("%w: bad magic", ErrCorrupt)}
	}
	header, err := r.readMessage()
	if err == nil && header == nil {
		err = fmt.Errorf("%w: empty header", ErrCorrupt)
	}
	if err == nil {
		r.id, err = parseHeader(header)
	}
	if err != nil {
		f.Close()
		return nil, &Error{Path: path, Op: "open", Err: corrupt(err)}
	}
	return r, nil
}

// ID returns the identity stored in the file header.
func (r *Reader) ID() ID { return r.id }

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Next advances to the next record. It returns false at the end of the file
// or on error; Err distinguishes the two.
func (r *Reader) Next() bool {
	if r.err != nil || r.eof {
		return false
	}
	body, err := r.readMessage()
	if err != nil {
		r.setErr(err)
		return false
	}
	if body == nil {
		r.finish()
		return false
	}
	rec, err := parseRecord(body)
	if err != nil {
		r.setErr(err)
		return false
	}
	if rec.Count == 0 || rec.NGram.First == "" {
		r.setErr(fmt.Errorf("%w: invalid record %q count %d", ErrCorrupt, rec.NGram.String(), rec.Count))
		return false
	}
	if r.records > 0 && !r.rec.NGram.Less(rec.NGram) {
		r.setErr(fmt.Errorf("%w: not sorted, %q after %q", ErrCorrupt, rec.NGram.String(), r.rec.NGram.String()))
		return false
	}
	r.rec = rec
	r.records++
	return true
}

// Record returns the current record.
func (r *Reader) Record() models.CountRecord { return r.rec }

// Err returns the first error met while reading.
func (r *Reader) Err() error { return r.err }

// Close releases the file handle. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// readMessage returns the next length-prefixed message, or nil for the
// end marker.
func (r *Reader) readMessage() ([]byte, error) {
	n, err := readVarint(r.br)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > MaxRecordBytes {
		return nil, fmt.Errorf("%w: message length %d", ErrCorrupt, n)
	}
	if cap(r.buf) < int(n) {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := io.ReadFull(r.br, r.buf); err != nil {
		return nil, err
	}
	return r.buf, nil
}

func (r *Reader) finish() {
	want, err := readVarint(r.br)
	if err != nil {
		r.setErr(fmt.Errorf("missing trailer: %w", err))
		return
	}
	if want != r.records {
		r.setErr(fmt.Errorf("%w: trailer says %d records, read %d", ErrCorrupt, want, r.records))
		return
	}
	if _, err := r.br.ReadByte(); err != io.EOF {
		r.setErr(fmt.Errorf("%w: data after trailer", ErrCorrupt))
		return
	}
	r.eof = true
}

func (r *Reader) setErr(err error) {
	r.err = &Error{ID: r.id, Path: r.path, Op: "read", Err: corrupt(err)}
}

// corrupt folds truncation and wire errors into ErrCorrupt.
func corrupt(err error) error {
	if errors.Is(err, ErrCorrupt) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated", ErrCorrupt)
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}
