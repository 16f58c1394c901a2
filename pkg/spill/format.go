// Package spill reads and writes spill files: sorted, deduplicated runs of
// count records written when a shard's in-memory table exceeds its budget.
//
// Layout: an 8 byte magic, a length-prefixed header message, then one
// length-prefixed record message per n-gram in ascending order, a zero
// length end marker and the record count. Messages use the protobuf wire
// format so fields can be added without breaking old files.
package spill

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/dtnitsch/wiki-ngrams/models"
	"google.golang.org/protobuf/encoding/protowire"
)

const magic = "NGSPILL1"

// MergeShard marks spill files produced by intermediate merge steps.
const MergeShard = -1

// ErrCorrupt reports a spill file that failed an integrity check.
var ErrCorrupt = errors.New("corrupt spill file")

// ErrRecordTooLarge is returned by Write for a record the reader would
// refuse.
var ErrRecordTooLarge = errors.New("spill record too large")

// ID identifies a spill file by owning shard and sequence number.
type ID struct {
	Shard int
	Seq   int
}

func (id ID) String() string {
	if id.Shard == MergeShard {
		return fmt.Sprintf("merge/%d", id.Seq)
	}
	return fmt.Sprintf("shard %d/%d", id.Shard, id.Seq)
}

// Error carries the identity of the spill file an operation failed on.
type Error struct {
	ID   ID
	Path string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("spill %s %s (%s): %v", e.Op, e.ID, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	fieldShard protowire.Number = 1
	fieldSeq   protowire.Number = 2

	fieldFirst  protowire.Number = 1
	fieldSecond protowire.Number = 2
	fieldCount  protowire.Number = 3
	fieldDocs   protowire.Number = 4
)

func appendHeader(b []byte, id ID) []byte {
	b = protowire.AppendTag(b, fieldShard, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(id.Shard)))
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id.Seq))
	return b
}

func parseHeader(b []byte) (ID, error) {
	var id ID
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return id, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldShard && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return id, protowire.ParseError(m)
			}
			id.Shard = int(protowire.DecodeZigZag(v))
			n = m
		case num == fieldSeq && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return id, protowire.ParseError(m)
			}
			id.Seq = int(v)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return id, protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return id, nil
}

func appendRecord(b []byte, rec models.CountRecord) []byte {
	b = protowire.AppendTag(b, fieldFirst, protowire.BytesType)
	b = protowire.AppendString(b, rec.NGram.First)
	if rec.NGram.Second != "" {
		b = protowire.AppendTag(b, fieldSecond, protowire.BytesType)
		b = protowire.AppendString(b, rec.NGram.Second)
	}
	b = protowire.AppendTag(b, fieldCount, protowire.VarintType)
	b = protowire.AppendVarint(b, rec.Count)
	b = protowire.AppendTag(b, fieldDocs, protowire.VarintType)
	b = protowire.AppendVarint(b, rec.Docs)
	return b
}

func parseRecord(b []byte) (models.CountRecord, error) {
	var rec models.CountRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case (num == fieldFirst || num == fieldSecond) && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return rec, protowire.ParseError(m)
			}
			if num == fieldFirst {
				rec.NGram.First = string(v)
			} else {
				rec.NGram.Second = string(v)
			}
			n = m
		case (num == fieldCount || num == fieldDocs) && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return rec, protowire.ParseError(m)
			}
			if num == fieldCount {
				rec.Count = v
			} else {
				rec.Docs = v
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return rec, nil
}

// readVarint reads one varint without over-consuming the reader.
func readVarint(br *bufio.Reader) (uint64, error) {
	buf, err := br.Peek(maxVarintLen)
	if len(buf) == 0 {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if _, err := br.Discard(n); err != nil {
		return 0, err
	}
	return v, nil
}

// maxVarintLen is the longest varint encoding of a uint64.
const maxVarintLen = 10

// MaxRecordBytes bounds header and record sizes. Writers refuse larger
// records and readers treat larger lengths as corruption.
const MaxRecordBytes = 1 << 20
