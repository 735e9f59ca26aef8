package bgcut

import (
	"image"

	"github.com/disintegration/imaging"
)

// CropConfig configures the behavior of the subject crop
type CropConfig struct {
	// Margin is the margin in pixels around the detected subject (default: 20)
	Margin int
	// MarginPercent is the margin as a fraction of the subject dimensions (overrides Margin if > 0)
	MarginPercent float64
	// MinAlpha is the minimum alpha to consider a pixel part of the subject (default: 10)
	MinAlpha uint8
	// SquareCrop forces the crop to be square, using the largest dimension
	SquareCrop bool
}

type objectBounds struct {
	MinX, MinY, MaxX, MaxY int
	Width, Height          int
}

// Crop trims a cutout to the bounding box of its opaque pixels.
func Crop(img image.Image, config *CropConfig) (*image.NRGBA, error) {
	if config == nil {
		config = &CropConfig{
			Margin:   20,
			MinAlpha: 10,
		}
	}
	return crop(img, MaskFromAlpha(img), config)
}

// detectObjectBounds returns the inclusive bounds of mask values >= minValue,
// in the mask's own coordinates.
func detectObjectBounds(mask *image.Gray, minValue uint8) (objectBounds, bool) {
	bounds := mask.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	found := false

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if mask.GrayAt(x, y).Y < minValue {
				continue
			}
			found = true
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}

	if !found {
		return objectBounds{}, false
	}

	return objectBounds{
		MinX:   minX,
		MinY:   minY,
		MaxX:   maxX,
		MaxY:   maxY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}, true
}

func crop(img image.Image, mask *image.Gray, config *CropConfig) (*image.NRGBA, error) {
	bounds := img.Bounds()
	obj, found := detectObjectBounds(mask, config.MinAlpha)
	if !found {
		return nil, ErrNoSubject
	}

	margin := config.Margin
	if config.MarginPercent > 0 {
		marginX := int(float64(obj.Width) * config.MarginPercent)
		marginY := int(float64(obj.Height) * config.MarginPercent)
		margin = max(marginX, marginY)
	}

	cropMinX := max(bounds.Min.X, obj.MinX-margin)
	cropMinY := max(bounds.Min.Y, obj.MinY-margin)
	cropMaxX := min(bounds.Max.X, obj.MaxX+1+margin)
	cropMaxY := min(bounds.Max.Y, obj.MaxY+1+margin)

	if config.SquareCrop {
		cropW := cropMaxX - cropMinX
		cropH := cropMaxY - cropMinY
		if cropW > cropH {
			diff := cropW - cropH
			cropMinY = max(bounds.Min.Y, cropMinY-diff/2)
			cropMaxY = min(bounds.Max.Y, cropMaxY+diff-diff/2)
		} else if cropH > cropW {
			diff := cropH - cropW
			cropMinX = max(bounds.Min.X, cropMinX-diff/2)
			cropMaxX = min(bounds.Max.X, cropMaxX+diff-diff/2)
		}
	}

	rect := image.Rect(cropMinX, cropMinY, cropMaxX, cropMaxY)
	return imaging.Crop(img, rect), nil
}
