package bgcut

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forRows splits [0, h) into at most workers contiguous bands and runs fn on
// each band concurrently. Bands never overlap, so fn may write rows of its
// own band without locking.
func forRows(ctx context.Context, h, workers int, fn func(y0, y1 int) error) error {
	if h <= 0 {
		return ctx.Err()
	}
	workers = max(1, min(workers, h))
	chunk := (h + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < h; y0 += chunk {
		y1 := min(y0+chunk, h)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(y0, y1)
		})
	}
	return g.Wait()
}
