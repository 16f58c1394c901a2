package models

import "time"

// RunStats are the totals a counting run reports.
type RunStats struct {
	Shards           int    `json:"shards" yaml:"shards"`
	Articles         int64  `json:"articles" yaml:"articles"`
	SkippedArticles  int64  `json:"skipped_articles" yaml:"skipped_articles"`
	Tokens           uint64 `json:"tokens" yaml:"tokens"`
	Bigrams          uint64 `json:"bigrams" yaml:"bigrams"`
	DistinctUnigrams int64  `json:"distinct_unigrams" yaml:"distinct_unigrams"`
	DistinctBigrams  int64  `json:"distinct_bigrams" yaml:"distinct_bigrams"`
	SpillFiles       int    `json:"spill_files" yaml:"spill_files"`
	SpillBytes       int64  `json:"spill_bytes" yaml:"spill_bytes"`
	MergeSteps       int    `json:"merge_steps" yaml:"merge_steps"`
}

// OutputFile describes one durable output of a run.
type OutputFile struct {
	Kind      string `json:"kind" yaml:"kind"` // arpa, topk, topk-bigrams, merged, report
	Path      string `json:"path" yaml:"path"`
	SHA256    string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
}

// RunReport is printed and stored at the end of a counting run.
type RunReport struct {
	RunID       int64         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Status      string        `json:"status" yaml:"status"` // succeeded, failed
	FailedStage string        `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Stats       RunStats      `json:"stats" yaml:"stats"`
	Outputs     []OutputFile  `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	TopUnigrams []CountRecord `json:"-" yaml:"-"`
	TopBigrams  []CountRecord `json:"-" yaml:"-"`
}

// SplitStats are the totals a split reports.
type SplitStats struct {
	Documents        int64 `json:"documents" yaml:"documents"`
	Articles         int64 `json:"articles" yaml:"articles"`
	SkippedMalformed int64 `json:"skipped_malformed" yaml:"skipped_malformed"`
	FilteredShort    int64 `json:"filtered_short" yaml:"filtered_short"`
	FilteredLanguage int64 `json:"filtered_language" yaml:"filtered_language"`
	Pieces           int   `json:"pieces" yaml:"pieces"`
}
