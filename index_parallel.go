package shade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jward/shade/internal/analysis"
	"github.com/jward/shade/internal/parser"
	"github.com/jward/shade/internal/span"
	"github.com/jward/shade/internal/store"
)

// workItem holds everything an analysis worker needs.
type workItem struct {
	path   string
	src    []byte
	fileID int64
	batch  *store.BatchedStore
}

type workResult struct {
	item      workItem
	repaired  bool
	syntaxErr string
	err       error
}

// IndexFiles indexes files using a three-phase pipeline:
//
//	Phase A (serial):   hash check, delete old rows, insert file records.
//	Phase B (parallel): analyse and export into a per-file batch.
//	Phase C (serial):   commit batches to SQLite.
//
// Files that fail are counted in Stats.Failed; the first failure is
// returned after every other file has been committed.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string) (Stats, error) {
	var stats Stats

	// ---- Phase A ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := ix.prepareFile(path)
		if err != nil {
			return stats, fmt.Errorf("prepare %s: %w", path, err)
		}
		if skip {
			stats.Skipped++
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return stats, ix.storeSettingsHash()
	}

	// ---- Phase B ----
	workers := ix.workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, len(items)))

	resultCh := make(chan workResult, len(items))
	go func() {
		for _, item := range items {
			g.Go(func() error {
				resultCh <- ix.analyzeFile(gctx, item)
				// Per-file failures are collected, not propagated, so one
				// bad file does not cancel the rest.
				return nil
			})
		}
		g.Wait()
		close(resultCh)
	}()

	// ---- Phase C ----
	var errs []error
	for res := range resultCh {
		switch {
		case res.err != nil:
			stats.Failed++
			errs = append(errs, fmt.Errorf("analyse %s: %w", res.item.path, res.err))
			ix.forget(res.item)
			continue
		case res.syntaxErr != "" && !res.repaired:
			stats.SyntaxErrors++
		case res.repaired:
			stats.Repaired++
		}

		if err := ix.store.CommitBatch(res.item.batch); err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.path, err))
			ix.forget(res.item)
			continue
		}
		if err := ix.store.UpdateFileStatus(res.item.fileID, res.repaired, res.syntaxErr); err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("status %s: %w", res.item.path, err))
			continue
		}
		stats.Indexed++
		ix.logger.Debug("indexed", "path", res.item.path, "rows", res.item.batch.Len(), "repaired", res.repaired)
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, ix.storeSettingsHash()
}

// prepareFile does Phase A work for a single file. skip is true when the
// file is unchanged since it was last indexed.
func (ix *Indexer) prepareFile(path string) (workItem, bool, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(src)

	existing, err := ix.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return workItem{}, true, nil
	}
	if existing != nil {
		if err := ix.store.DeleteFile(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old file: %w", err)
		}
	}

	fileID, err := ix.store.InsertFile(&store.File{
		Path:        path,
		Hash:        hash,
		LineCount:   span.NewLines(src).Count(),
		LastIndexed: ix.now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	return workItem{path: path, src: src, fileID: fileID, batch: store.NewBatchedStore()}, false, nil
}

// analyzeFile does Phase B work. A syntax error is an outcome, not a
// failure: the file keeps its record with the message and no rows.
func (ix *Indexer) analyzeFile(ctx context.Context, item workItem) workResult {
	res := workResult{item: item}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}

	a, err := analysis.Analyze(ctx, item.src, ix.opts)
	var synErr *parser.SyntaxError
	switch {
	case errors.As(err, &synErr):
		res.syntaxErr = synErr.Error()
		return res
	case err != nil:
		res.err = err
		return res
	}

	res.repaired = a.Repaired
	if rec := a.SyntaxError(); rec != nil {
		res.syntaxErr = rec.Error()
	}
	res.err = analysis.Export(item.batch, item.fileID, a)
	return res
}

// forget drops the record of a file that could not be indexed, so that the
// next pass retries it instead of skipping it as unchanged.
func (ix *Indexer) forget(item workItem) {
	if err := ix.store.DeleteFile(item.fileID); err != nil {
		ix.logger.Warn("forget failed file", "path", item.path, "error", err)
	}
}

func (ix *Indexer) storeSettingsHash() error {
	return ix.store.SetMetadata(settingsHashKey, ix.settingsHash())
}
