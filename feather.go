package bgcut

import (
	"context"
	"math"
)

// Feather writes the alpha channel of buf from mask. Background pixels are
// cleared to zero; those with a foreground pixel within cfg.FeatherRadius
// (square rings, nearest first) then get FeatherAlpha of that distance.
// Foreground pixels and all RGB channels are left untouched.
func Feather(ctx context.Context, buf *PixelBuffer, mask BackgroundMask, cfg Config) error {
	if err := buf.check(); err != nil {
		return &ProcessingError{Stage: "feather", Err: err}
	}
	w, h := buf.W, buf.H
	if len(mask) != w*h {
		return processingErrorf("feather", "mask holds %d cells, %dx%d needs %d", len(mask), w, h, w*h)
	}

	err := forRows(ctx, h, cfg.workers(), func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if !mask[i] {
					continue
				}
				var alpha uint8
				if d := edgeDistance(mask, w, h, x, y, cfg.FeatherRadius); d > 0 {
					alpha = FeatherAlpha(d, cfg.FeatherRadius, cfg.FeatherScale)
				}
				buf.Pix[i*4+3] = alpha
			}
		}
		return nil
	})
	if err != nil {
		return &ProcessingError{Stage: "feather", Err: err}
	}
	return nil
}

// FeatherAlpha is 255 * (1 - d/radius) * scale, rounded to the nearest
// integer. With the defaults this gives 51 at d=1, 26 at d=2 and 0 at d=3.
func FeatherAlpha(d, radius int, scale float64) uint8 {
	if radius <= 0 || d <= 0 || d >= radius {
		return 0
	}
	v := 255 * (1 - float64(d)/float64(radius)) * scale
	return uint8(math.Round(min(max(v, 0), 255)))
}

// edgeDistance returns the smallest ring radius in [1, radius] that holds a
// foreground pixel, or 0 when none does.
func edgeDistance(mask BackgroundMask, w, h, x, y, radius int) int {
	for d := 1; d <= radius; d++ {
		for ny := y - d; ny <= y+d; ny++ {
			if ny < 0 || ny >= h {
				continue
			}
			edge := ny == y-d || ny == y+d
			for nx := x - d; nx <= x+d; nx++ {
				if nx < 0 || nx >= w {
					continue
				}
				if !edge && nx != x-d && nx != x+d {
					continue
				}
				if !mask[ny*w+nx] {
					return d
				}
			}
		}
	}
	return 0
}
