package covenant

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"covenant/internal/collect"
)

// FileCollection is the outcome of collecting one file in a batch.
type FileCollection struct {
	Path       string
	Collection *collect.Collection
	Err        error
}

// CollectFiles collects artifacts from many files with a worker pool sized
// to the CPU count. Collectors are pure functions of (contents, mode), so
// files parse independently; per-file parse failures land in that file's
// result instead of aborting the batch. Results come back ordered by path.
func (e *Engine) CollectFiles(ctx context.Context, paths []string, mode collect.Mode) ([]FileCollection, error) {
	results := make([]FileCollection, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			col, err := e.collectors.Collect(ctx, path, mode)
			// Parse failures and unsupported files are per-file findings,
			// not batch failures.
			results[i] = FileCollection{Path: path, Collection: col, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}
