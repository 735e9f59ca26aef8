package bgcut

import (
	"image"
	"image/color"
)

// MaskFromAlpha uses the image’s alpha channel as mask.
func MaskFromAlpha(img image.Image) *image.Gray {
	bounds := img.Bounds()
	mask := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			mask.SetGray(x, y, color.Gray{Y: uint8(a >> 8)})
		}
	}
	return mask
}

// Gray renders the mask with background black and subject white, the same
// convention MaskFromAlpha uses.
func (m BackgroundMask) Gray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range min(len(m), len(img.Pix)) {
		if !m[i] {
			img.Pix[i] = 255
		}
	}
	return img
}

// Gray renders the confidence map scaled so that top maps to white.
func (c ConfidenceMap) Gray(w, h int, top float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	if top <= 0 {
		return img
	}
	for i := range min(len(c), len(img.Pix)) {
		v := c[i] / top * 255
		if v > 255 {
			v = 255
		}
		img.Pix[i] = uint8(v)
	}
	return img
}
