package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dtnitsch/wiki-ngrams/internal/common"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/storage"
)

// OutputSet tracks the output files of one run. Files are written under
// temporary names and become visible together on Commit; Discard removes
// every one of them.
type OutputSet struct {
	files []*outputFile
}

type outputFile struct {
	kind string
	out  *storage.Output
	buf  *bufio.Writer
	hw   *common.HashWriter
}

// Create starts a new output file and returns a buffered writer for it.
func (s *OutputSet) Create(kind, path string) (io.Writer, error) {
	out, err := storage.CreateOutput(path)
	if err != nil {
		return nil, err
	}
	hw := common.NewHashWriter(out)
	f := &outputFile{kind: kind, out: out, hw: hw, buf: bufio.NewWriterSize(hw, 1<<20)}
	s.files = append(s.files, f)
	return f.buf, nil
}

// Commit flushes and moves every file into place, returning their
// descriptions in creation order. If any file fails, all are removed.
func (s *OutputSet) Commit() ([]models.OutputFile, error) {
	result := make([]models.OutputFile, 0, len(s.files))
	for i, f := range s.files {
		err := f.buf.Flush()
		if err == nil {
			err = f.out.Commit()
		}
		if err != nil {
			for _, done := range s.files[:i] {
				os.Remove(done.out.FinalPath())
			}
			s.Discard()
			return nil, fmt.Errorf("failed to commit %s output: %w", f.kind, err)
		}
		result = append(result, models.OutputFile{
			Kind:      f.kind,
			Path:      f.out.FinalPath(),
			SHA256:    f.hw.Sum(),
			SizeBytes: f.hw.Size(),
		})
	}
	s.files = nil
	return result, nil
}

// Discard removes all uncommitted files.
func (s *OutputSet) Discard() {
	for _, f := range s.files {
		f.out.Discard()
	}
	s.files = nil
}
