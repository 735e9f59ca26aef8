package bgcut

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// PixelBuffer is a non-premultiplied RGBA raster, four bytes per pixel in
// row-major order. One pipeline run owns it exclusively.
type PixelBuffer struct {
	W, H int
	Pix  []uint8
}

// NewPixelBuffer copies img into a fresh buffer anchored at the origin.
func NewPixelBuffer(img image.Image) *PixelBuffer {
	n := imaging.Clone(img)
	return &PixelBuffer{W: n.Rect.Dx(), H: n.Rect.Dy(), Pix: n.Pix}
}

// Load decodes r into a PixelBuffer. EXIF orientation is applied so camera
// photos come out upright.
func Load(r io.Reader) (*PixelBuffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	buf := NewPixelBuffer(img)
	if buf.W == 0 || buf.H == 0 {
		return nil, &DecodeError{Err: errors.Errorf("empty image %dx%d", buf.W, buf.H)}
	}
	return buf, nil
}

// LoadBytes is Load over an in-memory source.
func LoadBytes(data []byte) (*PixelBuffer, error) {
	return Load(bytes.NewReader(data))
}

// Image returns an *image.NRGBA sharing the buffer's pixels.
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.W * 4,
		Rect:   image.Rect(0, 0, b.W, b.H),
	}
}

// Encode writes the buffer as PNG, keeping the alpha channel exactly.
func (b *PixelBuffer) Encode(w io.Writer) error {
	if err := b.check(); err != nil {
		return &EncodeError{Err: err}
	}
	if err := imaging.Encode(w, b.Image(), imaging.PNG); err != nil {
		return &EncodeError{Err: err}
	}
	return nil
}

// EncodeBytes is Encode into a fresh byte slice.
func (b *PixelBuffer) EncodeBytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := b.Encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *PixelBuffer) check() error {
	if b == nil {
		return errors.New("nil pixel buffer")
	}
	if b.W <= 0 || b.H <= 0 {
		return errors.Errorf("invalid dimensions %dx%d", b.W, b.H)
	}
	if len(b.Pix) != b.W*b.H*4 {
		return errors.Errorf("buffer holds %d bytes, %dx%d needs %d", len(b.Pix), b.W, b.H, b.W*b.H*4)
	}
	return nil
}

func (b *PixelBuffer) rgb(i int) (uint8, uint8, uint8) {
	p := b.Pix[i*4 : i*4+3 : i*4+3]
	return p[0], p[1], p[2]
}

// brightness returns (r+g+b)/3 for every pixel.
func (b *PixelBuffer) brightness() []float64 {
	lum := make([]float64, b.W*b.H)
	for i := range lum {
		r, g, bl := b.rgb(i)
		lum[i] = (float64(r) + float64(g) + float64(bl)) / 3
	}
	return lum
}
