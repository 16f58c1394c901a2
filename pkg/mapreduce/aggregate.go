package mapreduce

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
	"github.com/dtnitsch/wiki-ngrams/pkg/tokenizer"
)

// Approximate heap cost of table entries, used for the memory budget.
const (
	entryBytes  = 64 // key, tally and map overhead per n-gram
	stringBytes = 56 // string header, intern map slot and slice slot per token
)

// Tokenizer converts article text into word tokens.
type Tokenizer interface {
	Tokens(text string) ([]string, error)
}

// SpillStore creates and removes spill files.
type SpillStore interface {
	CreateSpill(id spill.ID) (*spill.Writer, error)
	RemoveSpill(path string) error
}

// ShardStats are the per-shard totals of an aggregation.
type ShardStats struct {
	Articles  int64
	Skipped   int64
	Tokens    uint64
	Bigrams   uint64
	Spills    int
	PeakBytes uint64
}

type key struct {
	first, second uint32
}

type tally struct {
	count, docs uint64
}

// Aggregator counts the n-grams of one shard. When the estimated size of its
// table reaches the memory budget, the table is sorted, written out as a
// spill file and cleared. An Aggregator is owned by a single goroutine.
//
// The budget covers the count table and the intern table. The article being
// counted (its token slice and the set of n-grams already seen in it) is not
// charged: a spill cannot free it, so one article may take memory beyond the
// budget in proportion to its own length.
type Aggregator struct {
	shard          int
	budget         uint64
	remainderLimit uint64
	store          SpillStore
	tok            Tokenizer
	logger         *slog.Logger

	interner *Interner
	table    map[key]tally
	used     uint64
	seen     map[models.NGram]struct{}

	seq   int
	runs  []Run
	stats ShardStats
}

// AggregatorConfig configures one shard aggregator.
type AggregatorConfig struct {
	Shard        int
	MemoryBudget uint64
	// RemainderInMemory keeps a final table of at most this many estimated
	// bytes in memory instead of spilling it. Zero always spills.
	RemainderInMemory uint64
}

// NewAggregator creates the aggregator for one shard.
func NewAggregator(cfg AggregatorConfig, store SpillStore, tok Tokenizer, logger *slog.Logger) (*Aggregator, error) {
	if cfg.MemoryBudget == 0 {
		return nil, fmt.Errorf("%w: memory budget must be positive", models.ErrInvalidConfig)
	}
	return &Aggregator{
		shard:          cfg.Shard,
		budget:         cfg.MemoryBudget,
		remainderLimit: cfg.RemainderInMemory,
		store:          store,
		tok:            tok,
		logger:         logger.With("shard", cfg.Shard),
		interner:       NewInterner(),
		table:          make(map[key]tally),
		seen:           make(map[models.NGram]struct{}),
	}, nil
}

// AddArticle tokenizes and counts one article. Articles that cannot be
// tokenized are skipped and counted; the only errors returned are spill
// failures, which are fatal for the run.
func (a *Aggregator) AddArticle(text string) error {
	tokens, err := a.tok.Tokens(text)
	if err != nil {
		if errors.Is(err, tokenizer.ErrMalformedArticle) {
			a.stats.Skipped++
			a.logger.Warn("Skipping malformed article", "article", a.stats.Articles+a.stats.Skipped, "error", err)
			return nil
		}
		return err
	}
	return a.AddTokens(tokens)
}

// AddTokens counts the unigrams and adjacent bigrams of one article's tokens.
// Empty tokens are dropped, so their neighbours become adjacent. Bigrams
// never span two calls.
func (a *Aggregator) AddTokens(tokens []string) error {
	a.stats.Articles++
	clear(a.seen)
	prev := ""
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if err := a.add(models.Unigram(tok)); err != nil {
			return err
		}
		a.stats.Tokens++
		if prev != "" {
			if err := a.add(models.Bigram(prev, tok)); err != nil {
				return err
			}
			a.stats.Bigrams++
		}
		prev = tok
	}
	return nil
}

// add counts one occurrence. The docs tally grows on the first occurrence in
// the current article; the seen set holds strings, not ids, so it stays valid
// across a spill in the middle of an article.
func (a *Aggregator) add(g models.NGram) error {
	k := key{first: a.intern(g.First), second: noToken}
	if g.Second != "" {
		k.second = a.intern(g.Second)
	}

	t, ok := a.table[k]
	if !ok {
		a.used += entryBytes
	}
	t.count++
	if _, dup := a.seen[g]; !dup {
		a.seen[g] = struct{}{}
		t.docs++
	}
	a.table[k] = t

	if a.used > a.stats.PeakBytes {
		a.stats.PeakBytes = a.used
	}
	if a.used >= a.budget {
		return a.spill()
	}
	return nil
}

func (a *Aggregator) intern(s string) uint32 {
	id, added := a.interner.Intern(s)
	if added {
		a.used += stringBytes + uint64(len(s))
	}
	return id
}

// records resolves the table into sorted count records.
func (a *Aggregator) records() []models.CountRecord {
	recs := make([]models.CountRecord, 0, len(a.table))
	for k, t := range a.table {
		g := models.NGram{First: a.interner.Lookup(k.first)}
		if k.second != noToken {
			g.Second = a.interner.Lookup(k.second)
		}
		recs = append(recs, models.CountRecord{NGram: g, Count: t.count, Docs: t.docs})
	}
	slices.SortFunc(recs, compareRecords)
	return recs
}

func (a *Aggregator) reset() {
	a.table = make(map[key]tally)
	a.interner.Reset()
	a.used = 0
}

// spill writes the whole table as the shard's next spill file.
func (a *Aggregator) spill() error {
	if len(a.table) == 0 {
		return nil
	}
	a.seq++
	id := spill.ID{Shard: a.shard, Seq: a.seq}
	w, err := a.store.CreateSpill(id)
	if err != nil {
		return err
	}
	for _, rec := range a.records() {
		if err := w.Write(rec); err != nil {
			w.Abort()
			return err
		}
	}
	if err := w.Close(); err != nil {
		w.Abort()
		return err
	}

	a.logger.Debug("Spilled table", "seq", a.seq, "path", w.Path(), "entries", w.Records(), "bytes", humanize.IBytes(a.used))
	a.runs = append(a.runs, Run{ID: id, Path: w.Path()})
	a.stats.Spills++
	a.reset()
	return nil
}

// Finish flushes what is left in the table and returns the shard's sorted
// runs. A small remainder stays in memory when allowed.
func (a *Aggregator) Finish() ([]Run, error) {
	if len(a.table) > 0 {
		if a.remainderLimit > 0 && a.used <= a.remainderLimit {
			id := spill.ID{Shard: a.shard, Seq: a.seq + 1}
			a.runs = append(a.runs, Run{ID: id, Records: a.records()})
			a.reset()
		} else if err := a.spill(); err != nil {
			return nil, err
		}
	}
	a.seen = nil
	return a.runs, nil
}

// Abort removes the spill files this aggregator created.
func (a *Aggregator) Abort() {
	for _, r := range a.runs {
		if r.OnDisk() {
			if err := a.store.RemoveSpill(r.Path); err != nil {
				a.logger.Warn("Failed to remove spill file", "path", r.Path, "error", err)
			}
		}
	}
	a.runs = nil
	a.reset()
}

// Stats returns the shard totals so far.
func (a *Aggregator) Stats() ShardStats {
	return a.stats
}
