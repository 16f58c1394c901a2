// Package mapreduce counts unigrams and bigrams per shard with a bounded
// memory table (the map side), k-way merges the sorted runs the shards
// produce into one summed stream (the reduce side), and selects the most
// frequent entries from that stream.
package mapreduce

import (
	"errors"
	"fmt"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
)

// Cursor iterates a sorted, deduplicated sequence of count records.
type Cursor interface {
	Next() bool
	Record() models.CountRecord
	Err() error
	Close() error
}

// Run is one sorted input of the merge: either a spill file on disk or a
// shard remainder small enough to stay in memory.
type Run struct {
	ID      spill.ID
	Path    string
	Records []models.CountRecord
}

// OnDisk reports whether the run is backed by a spill file.
func (r Run) OnDisk() bool {
	return r.Path != ""
}

func (r Run) String() string {
	if r.OnDisk() {
		return fmt.Sprintf("%s (%s)", r.ID, r.Path)
	}
	return fmt.Sprintf("%s (memory, %d records)", r.ID, len(r.Records))
}

// Open returns a cursor positioned before the first record. Errors carry the
// run's identity even when the file is too damaged to name itself, and a
// file whose header names another run is rejected as corrupt.
func (r Run) Open() (Cursor, error) {
	if !r.OnDisk() {
		return &sliceCursor{recs: r.Records, pos: -1}, nil
	}
	cur, err := spill.Open(r.Path)
	if err != nil {
		var spillErr *spill.Error
		if errors.As(err, &spillErr) {
			spillErr.ID = r.ID
		}
		return nil, err
	}
	if cur.ID() != r.ID {
		cur.Close()
		return nil, &spill.Error{ID: r.ID, Path: r.Path, Op: "open",
			Err: fmt.Errorf("%w: header names %s", spill.ErrCorrupt, cur.ID())}
	}
	return cur, nil
}

func compareRecords(a, b models.CountRecord) int {
	return a.NGram.Compare(b.NGram)
}

type sliceCursor struct {
	recs []models.CountRecord
	pos  int
}

func (c *sliceCursor) Next() bool {
	if c.pos+1 >= len(c.recs) {
		c.pos = len(c.recs)
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Record() models.CountRecord { return c.recs[c.pos] }
func (c *sliceCursor) Err() error                 { return nil }
func (c *sliceCursor) Close() error               { return nil }
