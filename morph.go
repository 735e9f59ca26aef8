package bgcut

import "context"

// Refine runs cfg.MorphPasses rounds of erosion followed by dilation over
// mask, in place. Each step reads the previous step's complete output, and
// the outermost ring of pixels is never changed.
func Refine(ctx context.Context, mask BackgroundMask, w, h int, cfg Config) error {
	return refine(ctx, mask, w, h, cfg, nil)
}

func refine(ctx context.Context, mask BackgroundMask, w, h int, cfg Config, pool *maskPool) error {
	if len(mask) != w*h {
		return processingErrorf("refine", "mask holds %d cells, %dx%d needs %d", len(mask), w, h, w*h)
	}
	if cfg.MorphPasses == 0 {
		return nil
	}
	if pool == nil {
		pool = newMaskPool()
	}
	scratch := pool.get(len(mask))
	defer pool.put(scratch)
	tmp := scratch.cells

	workers := cfg.workers()
	for pass := 0; pass < cfg.MorphPasses; pass++ {
		err := forRows(ctx, h, workers, func(y0, y1 int) error {
			morphRows(mask, tmp, w, h, y0, y1, func(bg bool, n int) bool {
				return bg && n >= cfg.ErodeMin
			})
			return nil
		})
		if err != nil {
			return &ProcessingError{Stage: "erode", Err: err}
		}

		err = forRows(ctx, h, workers, func(y0, y1 int) error {
			morphRows(tmp, mask, w, h, y0, y1, func(bg bool, n int) bool {
				return bg || n > cfg.DilateMin
			})
			return nil
		})
		if err != nil {
			return &ProcessingError{Stage: "dilate", Err: err}
		}
	}
	return nil
}

// morphRows writes rows [y0, y1) of dst from src. Interior cells get
// rule(src[i], count) where count is the number of background cells in the
// 3x3 window around i, i itself included; border cells are copied.
func morphRows(src, dst BackgroundMask, w, h, y0, y1 int, rule func(bg bool, n int) bool) {
	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				dst[i] = src[i]
				continue
			}
			n := 0
			for ny := y - 1; ny <= y+1; ny++ {
				row := ny * w
				for nx := x - 1; nx <= x+1; nx++ {
					if src[row+nx] {
						n++
					}
				}
			}
			dst[i] = rule(src[i], n)
		}
	}
}
