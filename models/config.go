// Package models defines data structures for configuration, n-gram records
// and run reports.
package models

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultMemoryBudget  = 256 * 1024 * 1024
	DefaultMergeFanIn    = 64
	DefaultTopK          = 10000
	DefaultMinWordLength = 3
	DefaultPieces        = 12
	MaxPieces            = 1024
	DefaultSeed          = 42
)

// ByteSize is a byte count written as "256MB" or "1.5 GiB" in config files.
type ByteSize uint64

// ParseByteSize parses a human-readable size. A bare number is bytes.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q: %v", ErrInvalidConfig, s, err)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseByteSize(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// CountConfig holds runtime configuration for a counting run.
// Values come from an optional YAML file, overridden by CLI flags.
type CountConfig struct {
	InputDir       string `yaml:"input_dir"`
	OutputFile     string `yaml:"output_file"`
	Language       string `yaml:"language"`
	DictionaryPath string `yaml:"dictionary,omitempty"`

	Workers           int      `yaml:"workers"`
	MemoryBudget      ByteSize `yaml:"memory_budget"`
	RemainderInMemory ByteSize `yaml:"remainder_in_memory,omitempty"`
	MergeFanIn        int      `yaml:"merge_fan_in"`
	WorkDir           string   `yaml:"work_dir,omitempty"`
	MinFreeSpace      ByteSize `yaml:"min_free_space,omitempty"`

	TopK          int  `yaml:"top_k"`
	MinWordLength int  `yaml:"min_word_length,omitempty"` // 0 ranks the full merged stream
	MinArticles   int  `yaml:"min_articles,omitempty"`
	KeepMerged    bool `yaml:"keep_merged,omitempty"`

	DBPath string `yaml:"db_path,omitempty"`
}

// DefaultCountConfig returns the settings used when nothing is configured.
func DefaultCountConfig() CountConfig {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return CountConfig{
		Workers:       workers,
		MemoryBudget:  DefaultMemoryBudget,
		MergeFanIn:    DefaultMergeFanIn,
		TopK:          DefaultTopK,
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (CountConfig, error) {
	cfg := DefaultCountConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks settings that would make a run unable to progress.
// TopK <= 0 is valid and yields an empty top-k result.
func (c CountConfig) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input_dir is required", ErrInvalidConfig)
	}
	if c.OutputFile == "" {
		return fmt.Errorf("%w: output_file is required", ErrInvalidConfig)
	}
	if c.MemoryBudget == 0 {
		return fmt.Errorf("%w: memory_budget must be positive", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.MergeFanIn < 2 {
		return fmt.Errorf("%w: merge_fan_in must be at least 2, got %d", ErrInvalidConfig, c.MergeFanIn)
	}
	if c.MinWordLength < 0 || c.MinArticles < 0 {
		return fmt.Errorf("%w: min_word_length and min_articles cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// SplitConfig holds configuration for splitting a dump into shard files.
type SplitConfig struct {
	InputPath string
	OutputDir string
	Pieces    int
	Format    string // cirrus, lines, html

	// MinArticleWords drops articles with fewer whitespace-separated words.
	// Zero disables the filter.
	MinArticleWords int

	// Language, when DetectLanguage is set, keeps only articles detected as
	// this ISO 639-1 language.
	Language       string
	DetectLanguage bool

	Seed uint64
}

// Validate checks the split settings.
func (c SplitConfig) Validate() error {
	if c.InputPath == "" || c.OutputDir == "" {
		return fmt.Errorf("%w: input path and output dir are required", ErrInvalidConfig)
	}
	if c.Pieces < 1 || c.Pieces > MaxPieces {
		return fmt.Errorf("%w: pieces must be between 1 and %d, got %d", ErrInvalidConfig, MaxPieces, c.Pieces)
	}
	if c.MinArticleWords < 0 {
		return fmt.Errorf("%w: min article words cannot be negative", ErrInvalidConfig)
	}
	switch c.Format {
	case "cirrus", "lines", "html":
	default:
		return fmt.Errorf("%w: unknown input format %q", ErrInvalidConfig, c.Format)
	}
	if c.DetectLanguage && c.Language == "" {
		return fmt.Errorf("%w: language detection needs a language", ErrInvalidConfig)
	}
	return nil
}
