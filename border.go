package bgcut

import "math"

// ColorSample is an RGB reading taken from the image border.
type ColorSample struct {
	R, G, B uint8
}

// Distance is the Euclidean RGB distance between the sample and a color.
func (c ColorSample) Distance(r, g, b uint8) float64 {
	dr := float64(c.R) - float64(r)
	dg := float64(c.G) - float64(g)
	db := float64(c.B) - float64(b)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// SampleBorder walks the top and bottom rows, then the left and right
// columns, every stride pixels. Pixels reached by two walks are sampled
// twice. The bottom-right corner is appended when no walk lands on it, so
// all four corners are always present.
func SampleBorder(buf *PixelBuffer, stride int) []ColorSample {
	if stride <= 0 {
		stride = 1
	}
	w, h := buf.W, buf.H
	samples := make([]ColorSample, 0, 2*(w/stride+1)+2*(h/stride+1)+1)
	at := func(x, y int) ColorSample {
		r, g, b := buf.rgb(y*w + x)
		return ColorSample{R: r, G: g, B: b}
	}

	for x := 0; x < w; x += stride {
		samples = append(samples, at(x, 0), at(x, h-1))
	}
	for y := 0; y < h; y += stride {
		samples = append(samples, at(0, y), at(w-1, y))
	}
	if (w-1)%stride != 0 && (h-1)%stride != 0 {
		samples = append(samples, at(w-1, h-1))
	}
	return samples
}
