package bgcut

import (
	"context"
	"math"
)

// ConfidenceMap holds the accumulated background score of every pixel.
type ConfidenceMap []float64

// BackgroundMask marks pixels that belong to the backdrop.
type BackgroundMask []bool

// Ratio returns the fraction of cells marked background.
func (m BackgroundMask) Ratio() float64 {
	if len(m) == 0 {
		return 0
	}
	n := 0
	for _, bg := range m {
		if bg {
			n++
		}
	}
	return float64(n) / float64(len(m))
}

// EstimateBackground scores every pixel outside the margin. Each signal whose
// predicate holds adds its weight; the total is not normalized and may exceed
// one. Pixels inside the margin get a zero score and are marked according to
// cfg.MarginIsBackground.
func EstimateBackground(ctx context.Context, buf *PixelBuffer, samples []ColorSample, cfg Config) (ConfidenceMap, BackgroundMask, error) {
	if err := buf.check(); err != nil {
		return nil, nil, &ProcessingError{Stage: "estimate", Err: err}
	}
	if len(samples) == 0 {
		return nil, nil, processingErrorf("estimate", "no border samples")
	}

	w, h := buf.W, buf.H
	lum := buf.brightness()
	conf := make(ConfidenceMap, w*h)
	mask := make(BackgroundMask, w*h)
	m := cfg.Margin

	err := forRows(ctx, h, cfg.workers(), func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if x < m || y < m || x >= w-m || y >= h-m {
					mask[i] = cfg.MarginIsBackground
					continue
				}
				s := scorePixel(buf, lum, samples, cfg, x, y)
				conf[i] = s
				mask[i] = s > cfg.Threshold
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, &ProcessingError{Stage: "estimate", Err: err}
	}
	return conf, mask, nil
}

func scorePixel(buf *PixelBuffer, lum []float64, samples []ColorSample, cfg Config, x, y int) float64 {
	w, h := buf.W, buf.H
	i := y*w + x
	r, g, b := buf.rgb(i)

	var score float64
	for _, c := range samples {
		if c.Distance(r, g, b) < cfg.ColorDistance {
			score += cfg.ColorWeight
		}
	}

	if lum[i] > cfg.Brightness {
		score += cfg.BrightnessWeight
	}
	if saturation(r, g, b) < cfg.Saturation {
		score += cfg.SaturationWeight
	}

	if textureVariance(lum, w, h, x, y, cfg.TextureRadius) < cfg.TextureVariance {
		score += cfg.TextureWeight
	}

	if min(x, y, w-1-x, h-1-y) < cfg.EdgeProximity {
		score += cfg.EdgeWeight
	}
	return score
}

// saturation is (max-min)/max over the integer channels, 0 for black.
func saturation(r, g, b uint8) float64 {
	mx, mn := max(r, g, b), min(r, g, b)
	if mx == 0 {
		return 0
	}
	return float64(mx-mn) / float64(mx)
}

// textureVariance averages |lum(n) - lum(x,y)| over the square window of the
// given radius, center included. Cells outside the image are skipped.
func textureVariance(lum []float64, w, h, x, y, radius int) float64 {
	center := lum[y*w+x]
	var sum float64
	n := 0
	for ny := max(0, y-radius); ny <= min(h-1, y+radius); ny++ {
		row := ny * w
		for nx := max(0, x-radius); nx <= min(w-1, x+radius); nx++ {
			sum += math.Abs(lum[row+nx] - center)
			n++
		}
	}
	return sum / float64(n)
}
