package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
)

// Storage owns the spill directory of one counting run. Spill files are
// partitioned by shard and sequence number so writers never collide.
type Storage struct {
	baseDir string
}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

// New creates the spill directory for a run.
func New(baseDir string) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create spill directory: %w", err)
	}
	return &Storage{baseDir: baseDir}, nil
}

// BaseDir returns the run's spill directory.
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// SpillPath returns the path of a spill file.
// Example: .spill/run-7/shard-003/000002.spill
func (s *Storage) SpillPath(id spill.ID) string {
	dir := fmt.Sprintf("shard-%03d", id.Shard)
	if id.Shard == spill.MergeShard {
		dir = "merge"
	}
	return filepath.Join(s.baseDir, dir, fmt.Sprintf("%06d.spill", id.Seq))
}

// CreateSpill creates a new spill file, making its shard directory if needed.
func (s *Storage) CreateSpill(id spill.ID) (*spill.Writer, error) {
	path := s.SpillPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, &spill.Error{ID: id, Path: path, Op: "create", Err: err}
	}
	return spill.Create(path, id)
}

// RemoveSpill deletes a spill file once it has been merged.
func (s *Storage) RemoveSpill(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing spill file: %w", err)
	}
	return nil
}

// RemoveAll deletes the run's spill directory and everything in it.
func (s *Storage) RemoveAll() error {
	if err := os.RemoveAll(s.baseDir); err != nil {
		return fmt.Errorf("error removing spill directory: %w", err)
	}
	return nil
}

// SaveFile writes content to filePath in one step.
func SaveFile(filePath string, content []byte) error {
	out, err := CreateOutput(filePath)
	if err != nil {
		return err
	}
	if _, err := out.Write(content); err != nil {
		out.Discard()
		return fmt.Errorf("error saving file: %w", err)
	}
	return out.Commit()
}

// HasFile reports whether fn exists and is a regular file.
func HasFile(fn string) bool {
	info, err := os.Stat(fn)
	return err == nil && info.Mode().IsRegular()
}

// GetFileStats returns metadata about a file using os.Stat (no I/O overhead).
func GetFileStats(filePath string) (*FileStats, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("error getting file stats: %w", err)
	}

	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}
