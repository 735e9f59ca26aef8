package bgcut

import (
	"image"
	"image/color"
	"testing"
)

func TestMaskFromAlpha(t *testing.T) {
	t.Run("NRGBA", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
		img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 128})
		img.SetNRGBA(1, 0, color.NRGBA{A: 255})

		mask := MaskFromAlpha(img)
		if got := mask.GrayAt(0, 0).Y; got != 128 {
			t.Errorf("expected 128, got %d", got)
		}
		if got := mask.GrayAt(1, 0).Y; got != 255 {
			t.Errorf("expected 255, got %d", got)
		}
	})

	t.Run("RGBA", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		img.SetRGBA(0, 0, color.RGBA{A: 64})
		if got := MaskFromAlpha(img).GrayAt(0, 0).Y; got != 64 {
			t.Errorf("expected 64, got %d", got)
		}
	})

	t.Run("Opaque", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 3, 3))
		mask := MaskFromAlpha(img)
		for _, v := range mask.Pix {
			if v != 255 {
				t.Fatalf("gray images are opaque, got %d", v)
			}
		}
	})
}

func TestBackgroundMaskGray(t *testing.T) {
	mask := BackgroundMask{true, false, true, false}
	img := mask.Gray(2, 2)
	want := []uint8{0, 255, 0, 255}
	for i, v := range want {
		if img.Pix[i] != v {
			t.Errorf("pixel %d: expected %d, got %d", i, v, img.Pix[i])
		}
	}
}

func TestConfidenceMapGray(t *testing.T) {
	conf := ConfidenceMap{0, 0.5, 1, 3}
	img := conf.Gray(2, 2, 1)
	want := []uint8{0, 127, 255, 255}
	for i, v := range want {
		if img.Pix[i] != v {
			t.Errorf("pixel %d: expected %d, got %d", i, v, img.Pix[i])
		}
	}

	for _, v := range conf.Gray(2, 2, 0).Pix {
		if v != 0 {
			t.Fatal("non-positive top must render black")
		}
	}
}
