package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Output is a file written under a temporary name and moved into place by
// Commit, so readers never see a partial output.
type Output struct {
	*os.File
	final string
	done  bool
}

// CreateOutput starts writing the file that will end up at path.
func CreateOutput(path string) (*Output, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output %s: %w", path, err)
	}
	return &Output{File: f, final: path}, nil
}

// FinalPath returns where the file lands on Commit.
func (o *Output) FinalPath() string {
	return o.final
}

// Commit syncs, closes and renames the file into place.
func (o *Output) Commit() error {
	if o.done {
		return nil
	}
	o.done = true
	if err := o.Sync(); err != nil {
		o.File.Close()
		os.Remove(o.Name())
		return fmt.Errorf("failed to sync %s: %w", o.final, err)
	}
	if err := o.File.Close(); err != nil {
		os.Remove(o.Name())
		return fmt.Errorf("failed to close %s: %w", o.final, err)
	}
	if err := os.Rename(o.Name(), o.final); err != nil {
		os.Remove(o.Name())
		return fmt.Errorf("failed to move %s into place: %w", o.final, err)
	}
	return nil
}

// Discard closes and removes the temporary file. It is a no-op after Commit.
func (o *Output) Discard() {
	if o.done {
		return
	}
	o.done = true
	o.File.Close()
	os.Remove(o.Name())
}
