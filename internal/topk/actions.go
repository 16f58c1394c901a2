package topk

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dtnitsch/wiki-ngrams/internal/common"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/manifest"
	"github.com/dtnitsch/wiki-ngrams/pkg/pipeline"
	"github.com/dtnitsch/wiki-ngrams/pkg/storage"
	"github.com/urfave/cli/v2"
)

// TopWordsAction writes the k most frequent words of an n-gram file, one
// per line.
func TopWordsAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	inputFile := c.String("input-file")
	outputFile := c.String("output-file")
	if inputFile == "" || outputFile == "" {
		logger.Error("Both --input-file and --output-file are required")
		os.Exit(1)
	}
	k := c.Int("number-of-words")
	minLen := c.Int("minimum-word-length")
	if minLen < 0 {
		logger.Error("Minimum word length cannot be negative", "minimum_word_length", minLen)
		os.Exit(1)
	}

	words, err := pipeline.TopWords(inputFile, k, minLen)
	if err != nil {
		logger.Error("Failed to select top words", "input", inputFile, "error", err)
		os.Exit(2)
	}

	if err := writeWords(outputFile, words); err != nil {
		logger.Error("Failed to write top words", "output", outputFile, "error", err)
		os.Exit(2)
	}
	logger.Info("Wrote top words", "count", len(words), "output", outputFile)
	fmt.Printf("Wrote %d words to %s\n", len(words), outputFile)
	return nil
}

func writeWords(path string, words []models.CountRecord) error {
	out, err := storage.CreateOutput(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out)
	if err := manifest.WriteWords(bw, words); err != nil {
		out.Discard()
		return err
	}
	if err := bw.Flush(); err != nil {
		out.Discard()
		return err
	}
	return out.Commit()
}
