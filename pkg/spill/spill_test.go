package spill

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dtnitsch/wiki-ngrams/models"
	"google.golang.org/protobuf/encoding/protowire"
)

func writeSpill(t *testing.T, path string, id ID, recs []models.CountRecord) {
	t.Helper()
	w, err := Create(path, id)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write(%v) error = %v", rec, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func readSpill(t *testing.T, path string) ([]models.CountRecord, ID, error) {
	t.Helper()
	r, err := Open(path)
	if err != nil {
		return nil, ID{}, err
	}
	defer r.Close()
	var recs []models.CountRecord
	for r.Next() {
		recs = append(recs, r.Record())
	}
	return recs, r.ID(), r.Err()
}

func sampleRecords() []models.CountRecord {
	return []models.CountRecord{
		{NGram: models.Unigram("cat"), Count: 1, Docs: 1},
		{NGram: models.Unigram("sat"), Count: 2, Docs: 2},
		{NGram: models.Unigram("the"), Count: 2, Docs: 2},
		{NGram: models.Bigram("cat", "sat"), Count: 1, Docs: 1},
		{NGram: models.Bigram("the", "cat"), Count: 1, Docs: 1},
	}
}

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "000001.spill")
	id := ID{Shard: 3, Seq: 7}
	writeSpill(t, path, id, sampleRecords())

	got, gotID, err := readSpill(t, path)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if gotID != id {
		t.Errorf("ID = %v, want %v", gotID, id)
	}
	if !reflect.DeepEqual(got, sampleRecords()) {
		t.Errorf("records = %v, want %v", got, sampleRecords())
	}
}

func TestRecordSizeLimit(t *testing.T) {
	// Each token takes a tag and a 3 byte length; count and docs 2 bytes each.
	first := strings.Repeat("a", MaxRecordBytes/2)
	second := strings.Repeat("b", MaxRecordBytes/2-12)
	fits := models.CountRecord{NGram: models.Bigram(first, second), Count: 1, Docs: 1}

	path := filepath.Join(t.TempDir(), "000001.spill")
	writeSpill(t, path, ID{Shard: 0, Seq: 1}, []models.CountRecord{fits})
	got, _, err := readSpill(t, path)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if len(got) != 1 || got[0] != fits {
		t.Errorf("record at the limit did not round trip")
	}

	w, err := Create(filepath.Join(t.TempDir(), "000002.spill"), ID{Shard: 0, Seq: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Abort()
	tooBig := models.CountRecord{NGram: models.Bigram(first, second+"bb"), Count: 1, Docs: 1}
	err = w.Write(tooBig)
	if !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("Write() error = %v, want ErrRecordTooLarge", err)
	}
}

func TestMergeShardIDRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merge.spill")
	id := ID{Shard: MergeShard, Seq: 2}
	writeSpill(t, path, id, nil)

	got, gotID, err := readSpill(t, path)
	if err != nil {
		t.Fatalf("read error = %v", err)
	}
	if gotID != id || len(got) != 0 {
		t.Errorf("got id %v with %d records, want %v with none", gotID, len(got), id)
	}
}

func TestWriteRejectsUnsortedOrDuplicate(t *testing.T) {
	tests := []struct {
		name   string
		first  models.CountRecord
		second models.CountRecord
	}{
		{
			name:   "descending",
			first:  models.CountRecord{NGram: models.Unigram("the"), Count: 1},
			second: models.CountRecord{NGram: models.Unigram("cat"), Count: 1},
		},
		{
			name:   "duplicate",
			first:  models.CountRecord{NGram: models.Unigram("cat"), Count: 1},
			second: models.CountRecord{NGram: models.Unigram("cat"), Count: 3},
		},
		{
			name:   "bigram before unigram",
			first:  models.CountRecord{NGram: models.Bigram("a", "b"), Count: 1},
			second: models.CountRecord{NGram: models.Unigram("z"), Count: 1},
		},
		{
			name:   "zero count",
			first:  models.CountRecord{NGram: models.Unigram("a"), Count: 1},
			second: models.CountRecord{NGram: models.Unigram("b"), Count: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.spill")
			w, err := Create(path, ID{Shard: 1, Seq: 1})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			defer w.Abort()
			if err := w.Write(tt.first); err != nil {
				t.Fatalf("first Write() error = %v", err)
			}
			err = w.Write(tt.second)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("second Write() error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestAbortRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.spill")
	w, err := Create(path, ID{Shard: 0, Seq: 1})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	w.Abort()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after Abort, stat error = %v", err)
	}
}

func TestReadDetectsTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.spill")
	writeSpill(t, path, ID{Shard: 4, Seq: 2}, sampleRecords())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-5], 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err = readSpill(t, path)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("read error = %v, want ErrCorrupt", err)
	}
	var spillErr *Error
	if !errors.As(err, &spillErr) {
		t.Fatalf("error %T does not carry spill identity", err)
	}
	if spillErr.ID != (ID{Shard: 4, Seq: 2}) || spillErr.Path != path {
		t.Errorf("error identity = %v %s, want shard 4/2 %s", spillErr.ID, spillErr.Path, path)
	}
}

func TestReadDetectsUnsortedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unsorted.spill")

	header := appendHeader(nil, ID{Shard: 9, Seq: 1})
	data := append([]byte(magic), protowire.AppendVarint(nil, uint64(len(header)))...)
	data = append(data, header...)
	for _, rec := range []models.CountRecord{
		{NGram: models.Unigram("zebra"), Count: 1},
		{NGram: models.Unigram("apple"), Count: 1},
	} {
		body := appendRecord(nil, rec)
		data = protowire.AppendVarint(data, uint64(len(body)))
		data = append(data, body...)
	}
	data = protowire.AppendVarint(data, 0)
	data = protowire.AppendVarint(data, 2)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	recs, _, err := readSpill(t, path)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("read error = %v, want ErrCorrupt", err)
	}
	if len(recs) != 1 {
		t.Errorf("read %d records before failing, want 1", len(recs))
	}
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just some text, not a spill"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Open() error = %v, want ErrCorrupt", err)
	}
}
