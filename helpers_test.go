package bgcut

import (
	"image"
	"image/color"
	"math/rand"
)

var (
	white = color.NRGBA{250, 250, 250, 255}
	red   = color.NRGBA{220, 20, 20, 255}
	gray  = color.NRGBA{128, 128, 128, 255}

	colorBlack = color.NRGBA{0, 0, 0, 255}
)

func fill(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// framedBlock is a 20x20 white image with a 10x10 red block at (5,5)-(14,14).
func framedBlock() *image.NRGBA {
	img := fill(20, 20, white)
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	return img
}

func noise(w, h int, seed int64) *image.NRGBA {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rnd.Intn(256))
		img.Pix[i+1] = uint8(rnd.Intn(256))
		img.Pix[i+2] = uint8(rnd.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func inBlock(x, y int) bool {
	return x >= 5 && x < 15 && y >= 5 && y < 15
}
