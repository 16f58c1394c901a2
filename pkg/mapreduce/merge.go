package mapreduce

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"

	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/dtnitsch/wiki-ngrams/pkg/spill"
	"golang.org/x/sync/errgroup"
)

// Emit receives the merged stream one record at a time.
type Emit func(rec models.CountRecord) error

type mergeItem struct {
	cur   Cursor
	run   Run
	index int
}

// cursorHeap orders open cursors by their current n-gram, then by input
// position so the pop order is deterministic.
type cursorHeap []*mergeItem

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if c := h[i].cur.Record().NGram.Compare(h[j].cur.Record().NGram); c != 0 {
		return c < 0
	}
	return h[i].index < h[j].index
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(*mergeItem)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge k-way merges sorted runs into one stream with a single record per
// n-gram, summing counts and article counts of equal keys. Memory use is one
// record per open run. Every opened cursor is closed on return.
func Merge(ctx context.Context, runs []Run, emit Emit) error {
	h := make(cursorHeap, 0, len(runs))
	defer func() {
		for _, item := range h {
			item.cur.Close()
		}
	}()

	advance := func(item *mergeItem) error {
		if item.cur.Next() {
			heap.Push(&h, item)
			return nil
		}
		defer item.cur.Close()
		if err := item.cur.Err(); err != nil {
			return fmt.Errorf("failed to read run %s: %w", item.run, err)
		}
		return nil
	}

	for i, r := range runs {
		cur, err := r.Open()
		if err != nil {
			return fmt.Errorf("failed to open run %s: %w", r, err)
		}
		if err := advance(&mergeItem{cur: cur, run: r, index: i}); err != nil {
			return err
		}
	}

	var last models.NGram
	emitted := false
	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		top := heap.Pop(&h).(*mergeItem)
		out := top.cur.Record()
		if err := advance(top); err != nil {
			return err
		}
		for h.Len() > 0 && h[0].cur.Record().NGram == out.NGram {
			next := heap.Pop(&h).(*mergeItem)
			rec := next.cur.Record()
			out.Count += rec.Count
			out.Docs += rec.Docs
			if err := advance(next); err != nil {
				return err
			}
		}

		if emitted && !last.Less(out.NGram) {
			return fmt.Errorf("%w: merged stream out of order at %q", spill.ErrCorrupt, out.NGram.String())
		}
		if err := emit(out); err != nil {
			return err
		}
		last = out.NGram
		emitted = true
	}
	return nil
}

// MergeTree reduces runs to at most fanIn inputs by merging groups of fanIn
// runs into intermediate spill files, groups running concurrently on up to
// workers goroutines, then merges the remaining runs into emit. Merged spill
// files are removed as soon as their group is written. It returns the number
// of merge steps performed, counting the final one.
func MergeTree(ctx context.Context, runs []Run, fanIn, workers int, store SpillStore, logger *slog.Logger, emit Emit) (int, error) {
	if fanIn < 2 {
		return 0, fmt.Errorf("%w: merge fan-in must be at least 2", models.ErrInvalidConfig)
	}
	if workers < 1 {
		workers = 1
	}

	steps := 0
	seq := 0
	level := 0
	for len(runs) > fanIn {
		level++
		groups := (len(runs) + fanIn - 1) / fanIn
		next := make([]Run, groups)
		logger.Info("Merging intermediate runs", "level", level, "runs", len(runs), "groups", groups)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := 0; i < groups; i++ {
			lo, hi := i*fanIn, min((i+1)*fanIn, len(runs))
			seq++
			id := spill.ID{Shard: spill.MergeShard, Seq: seq}
			group := runs[lo:hi]
			g.Go(func() error {
				run, err := mergeToSpill(gctx, group, id, store)
				if err != nil {
					return err
				}
				next[i] = run
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return steps, err
		}
		steps += groups
		runs = next
	}

	if err := Merge(ctx, runs, emit); err != nil {
		return steps, err
	}
	return steps + 1, nil
}

func mergeToSpill(ctx context.Context, runs []Run, id spill.ID, store SpillStore) (Run, error) {
	w, err := store.CreateSpill(id)
	if err != nil {
		return Run{}, err
	}
	if err := Merge(ctx, runs, w.Write); err != nil {
		w.Abort()
		return Run{}, err
	}
	if err := w.Close(); err != nil {
		w.Abort()
		return Run{}, err
	}
	for _, r := range runs {
		if r.OnDisk() {
			if err := store.RemoveSpill(r.Path); err != nil {
				return Run{}, err
			}
		}
	}
	return Run{ID: id, Path: w.Path()}, nil
}
