package spill

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dtnitsch/wiki-ngrams/models"
	"google.golang.org/protobuf/encoding/protowire"
)

// Writer appends records to a new spill file. Records must arrive in
// strictly ascending n-gram order. A Writer has a single owner.
type Writer struct {
	id      ID
	path    string
	f       *os.File
	bw      *bufio.Writer
	buf     []byte
	last    models.NGram
	records uint64
	done    bool
}

// Create creates the spill file at path and writes its header.
func Create(path string, id ID) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &Error{ID: id, Path: path, Op: "create", Err: err}
	}
	w := &Writer{id: id, path: path, f: f, bw: bufio.NewWriterSize(f, 1<<20)}

	header := appendHeader(nil, id)
	frame := append([]byte(magic), protowire.AppendVarint(nil, uint64(len(header)))...)
	frame = append(frame, header...)
	if _, err := w.bw.Write(frame); err != nil {
		w.Abort()
		return nil, w.fail("write header", err)
	}
	return w, nil
}

// ID returns the identity written in the header.
func (w *Writer) ID() ID { return w.id }

// Path returns the file path.
func (w *Writer) Path() string { return w.path }

// Records returns how many records were written so far.
func (w *Writer) Records() uint64 { return w.records }

// Write appends one record.
func (w *Writer) Write(rec models.CountRecord) error {
	if rec.Count == 0 || rec.NGram.First == "" {
		return w.fail("write", fmt.Errorf("%w: invalid record %q count %d", ErrCorrupt, rec.NGram.String(), rec.Count))
	}
	if w.records > 0 && !w.last.Less(rec.NGram) {
		return w.fail("write", fmt.Errorf("%w: %q written after %q", ErrCorrupt, rec.NGram.String(), w.last.String()))
	}

	w.buf = appendRecord(w.buf[:0], rec)
	if len(w.buf) > MaxRecordBytes {
		return w.fail("write", fmt.Errorf("%w: %d bytes for %.32q, limit %d", ErrRecordTooLarge, len(w.buf), rec.NGram.First, MaxRecordBytes))
	}
	var lenBuf [maxVarintLen]byte
	if _, err := w.bw.Write(protowire.AppendVarint(lenBuf[:0], uint64(len(w.buf)))); err != nil {
		return w.fail("write", err)
	}
	if _, err := w.bw.Write(w.buf); err != nil {
		return w.fail("write", err)
	}
	w.last = rec.NGram
	w.records++
	return nil
}

// Close writes the end marker, syncs the file to stable storage and closes it.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	trailer := protowire.AppendVarint(nil, 0)
	trailer = protowire.AppendVarint(trailer, w.records)
	if _, err := w.bw.Write(trailer); err != nil {
		w.f.Close()
		return w.fail("close", err)
	}
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return w.fail("flush", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return w.fail("sync", err)
	}
	if err := w.f.Close(); err != nil {
		return w.fail("close", err)
	}
	return nil
}

// Abort closes and removes a partially written file.
func (w *Writer) Abort() {
	if !w.done {
		w.done = true
		_ = w.f.Close()
	}
	_ = os.Remove(w.path)
}

func (w *Writer) fail(op string, err error) error {
	return &Error{ID: w.id, Path: w.path, Op: op, Err: err}
}
