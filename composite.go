package bgcut

import (
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
)

// Composite places cutout over backdrop. The backdrop is scaled to cover the
// cutout and center-cropped, so the result has the cutout's dimensions.
func Composite(cutout, backdrop image.Image) *image.NRGBA {
	fg := imaging.Clone(cutout)
	w, h := fg.Rect.Dx(), fg.Rect.Dy()
	bg := imaging.Fill(backdrop, w, h, imaging.Center, imaging.Lanczos)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	blendParallel(dst, fg, bg)
	return dst
}

// blendParallel applies the non-premultiplied "over" operator row by row.
// All three images must share the same origin-anchored bounds.
func blendParallel(dst, fg, bg *image.NRGBA) {
	h := dst.Rect.Dy()
	w := dst.Rect.Dx()
	numCPU := runtime.NumCPU()
	chunk := (h + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	for i := range numCPU {
		startY := i * chunk
		endY := min(startY+chunk, h)
		if startY >= endY {
			continue
		}

		wg.Go(func() {
			for y := startY; y < endY; y++ {
				f := fg.Pix[y*fg.Stride : y*fg.Stride+w*4]
				b := bg.Pix[y*bg.Stride : y*bg.Stride+w*4]
				d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
				for x := 0; x < w*4; x += 4 {
					blendPixel(d[x:x+4], f[x:x+4], b[x:x+4])
				}
			}
		})
	}
	wg.Wait()
}

func blendPixel(dst, fg, bg []uint8) {
	af := float64(fg[3]) / 255
	ab := float64(bg[3]) / 255
	ao := af + ab*(1-af)
	if ao == 0 {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
		return
	}
	for c := 0; c < 3; c++ {
		v := (float64(fg[c])*af + float64(bg[c])*ab*(1-af)) / ao
		dst[c] = uint8(math.Round(v))
	}
	dst[3] = uint8(math.Round(ao * 255))
}
