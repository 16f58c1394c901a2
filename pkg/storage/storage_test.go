package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
)

func TestSpillPath(t *testing.T) {
	s := &Storage{baseDir: "work"}

	tests := []struct {
		name string
		id   spill.ID
		want string
	}{
		{
			name: "shard spill",
			id:   spill.ID{Shard: 3, Seq: 12},
			want: filepath.Join("work", "shard-003", "000012.spill"),
		},
		{
			name: "merge intermediate",
			id:   spill.ID{Shard: spill.MergeShard, Seq: 1},
			want: filepath.Join("work", "merge", "000001.spill"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SpillPath(tt.id); got != tt.want {
				t.Errorf("SpillPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCreateSpillAndRemoveAll(t *testing.T) {
	base := filepath.Join(t.TempDir(), "run-1")
	s, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	w, err := s.CreateSpill(spill.ID{Shard: 0, Seq: 1})
	if err != nil {
		t.Fatalf("CreateSpill() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !HasFile(w.Path()) {
		t.Fatalf("spill file %s not created", w.Path())
	}

	if err := s.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if _, err := os.Stat(base); !os.IsNotExist(err) {
		t.Errorf("spill directory still present, stat error = %v", err)
	}
}

func TestOutputCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.txt")
	out, err := CreateOutput(path)
	if err != nil {
		t.Fatalf("CreateOutput() error = %v", err)
	}
	if _, err := out.WriteString("hello\n"); err != nil {
		t.Fatal(err)
	}
	if HasFile(path) {
		t.Fatal("final file visible before Commit")
	}
	if err := out.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content = %q, want %q", data, "hello\n")
	}
	stats, err := GetFileStats(path)
	if err != nil {
		t.Fatalf("GetFileStats() error = %v", err)
	}
	if stats.SizeBytes != 6 {
		t.Errorf("SizeBytes = %d, want 6", stats.SizeBytes)
	}
}

func TestOutputDiscardLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	out, err := CreateOutput(filepath.Join(dir, "result.txt"))
	if err != nil {
		t.Fatalf("CreateOutput() error = %v", err)
	}
	out.Discard()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory has %d entries after Discard, want 0", len(entries))
	}
}

func TestFreeSpace(t *testing.T) {
	free, ok, err := FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace() error = %v", err)
	}
	if ok && free == 0 {
		t.Log("filesystem reports no free space")
	}
}
