package bgcut

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"
	"time"
)

func segment(t *testing.T, cfg Config, img image.Image) *Result {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Segment(context.Background(), NewPixelBuffer(img))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	return res
}

func newCutter(t *testing.T) *Cutter {
	t.Helper()
	c, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func alphas(buf *PixelBuffer) []uint8 {
	out := make([]uint8, 0, buf.W*buf.H)
	for i := 3; i < len(buf.Pix); i += 4 {
		out = append(out, buf.Pix[i])
	}
	return out
}

func TestSegmentUniformGray(t *testing.T) {
	res := segment(t, DefaultConfig(), fill(10, 10, gray))

	if r := res.Mask.Ratio(); r != 1 {
		t.Errorf("background ratio = %f, want 1", r)
	}
	for i, a := range alphas(res.Buffer) {
		if a != 0 {
			t.Errorf("alpha at pixel %d = %d, want 0", i, a)
		}
	}
	for y := 2; y < 8; y++ {
		for x := 2; x < 8; x++ {
			if s := res.Confidence[y*10+x]; s < 0.6 {
				t.Errorf("score at (%d,%d) = %f, want >= 0.6", x, y, s)
			}
		}
	}
}

func TestSegmentFramedBlock(t *testing.T) {
	res := segment(t, DefaultConfig(), framedBlock())
	buf := res.Buffer

	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if res.Mask[y*20+x] == inBlock(x, y) {
				t.Errorf("mask at (%d,%d) = %v", x, y, res.Mask[y*20+x])
			}
		}
	}

	tests := []struct {
		x, y int
		want uint8
	}{
		{9, 9, 255},
		{5, 5, 255},
		{4, 9, 51},
		{3, 9, 26},
		{2, 9, 0},
		{15, 9, 51},
		{16, 9, 26},
		{17, 9, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := buf.Pix[(tt.y*20+tt.x)*4+3]; got != tt.want {
			t.Errorf("alpha at (%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}

	if r, g, b := buf.rgb(4*20 + 9); r != white.R || g != white.G || b != white.B {
		t.Errorf("feathered pixel RGB changed to (%d,%d,%d)", r, g, b)
	}
}

func TestSegmentNoise(t *testing.T) {
	const size = 64
	res := segment(t, DefaultConfig(), noise(size, size, 42))

	n, bg := 0, 0
	for y := 2; y < size-2; y++ {
		for x := 2; x < size-2; x++ {
			n++
			if res.Mask[y*size+x] {
				bg++
			}
		}
	}
	if r := float64(bg) / float64(n); r >= 0.1 {
		t.Errorf("interior background ratio = %f, want < 0.1", r)
	}
	if r := res.Mask.Ratio(); r >= 0.25 {
		t.Errorf("background ratio = %f, want < 0.25", r)
	}
}

func TestSegmentDeterministic(t *testing.T) {
	for _, img := range []image.Image{framedBlock(), noise(48, 33, 3)} {
		var outs [][]uint8
		for _, workers := range []int{1, 3, 8, 0} {
			cfg := DefaultConfig()
			cfg.Workers = workers
			outs = append(outs, segment(t, cfg, img).Buffer.Pix)
		}
		for i := 1; i < len(outs); i++ {
			if !bytes.Equal(outs[0], outs[i]) {
				t.Errorf("run %d differs from the sequential run", i)
			}
		}
	}
}

func TestSegmentTinyImages(t *testing.T) {
	for _, dim := range [][2]int{{1, 1}, {2, 2}, {1, 7}, {7, 1}, {3, 3}, {5, 5}} {
		w, h := dim[0], dim[1]
		res := segment(t, DefaultConfig(), fill(w, h, red))
		if res.Buffer.W != w || res.Buffer.H != h {
			t.Errorf("%dx%d: got %dx%d", w, h, res.Buffer.W, res.Buffer.H)
		}
		if len(res.Buffer.Pix) != w*h*4 || len(res.Mask) != w*h {
			t.Errorf("%dx%d: buffer %d bytes, mask %d cells", w, h, len(res.Buffer.Pix), len(res.Mask))
		}
	}
}

func TestSegmentCancelled(t *testing.T) {
	c := newCutter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Segment(ctx, NewPixelBuffer(framedBlock()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var perr *ProcessingError
	if !errors.As(err, &perr) || perr.Stage != "sample" {
		t.Errorf("expected ProcessingError at stage sample, got %v", err)
	}
}

func TestSegmentTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Nanosecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Segment(context.Background(), NewPixelBuffer(noise(512, 512, 1)))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestSegmentBadBuffer(t *testing.T) {
	c := newCutter(t)

	_, err := c.Segment(context.Background(), &PixelBuffer{W: 4, H: 4, Pix: make([]uint8, 10)})
	var perr *ProcessingError
	if !errors.As(err, &perr) || perr.Stage != "load" {
		t.Errorf("expected ProcessingError at stage load, got %v", err)
	}
}

func TestRemoveBackground(t *testing.T) {
	c := newCutter(t)

	src := framedBlock()
	orig := append([]uint8(nil), src.Pix...)
	out, err := c.RemoveBackground(context.Background(), src)
	if err != nil {
		t.Fatalf("RemoveBackground: %v", err)
	}

	if out.Bounds() != src.Bounds() {
		t.Errorf("bounds = %v, want %v", out.Bounds(), src.Bounds())
	}
	if !bytes.Equal(orig, src.Pix) {
		t.Error("input must not be modified")
	}
	nrgba, ok := out.(*image.NRGBA)
	if !ok {
		t.Fatalf("expected *image.NRGBA, got %T", out)
	}
	if nrgba.Pix[3] != 0 {
		t.Errorf("corner alpha = %d, want 0", nrgba.Pix[3])
	}
}

func TestProcess(t *testing.T) {
	c := newCutter(t)

	var in bytes.Buffer
	if err := NewPixelBuffer(framedBlock()).Encode(&in); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out bytes.Buffer
	if err := c.Process(context.Background(), &in, &out); err != nil {
		t.Fatalf("Process: %v", err)
	}

	decoded, err := LoadBytes(out.Bytes())
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	want := segment(t, DefaultConfig(), framedBlock()).Buffer
	if !bytes.Equal(alphas(want), alphas(decoded)) {
		t.Error("alpha channel changed through PNG")
	}

	// Encoding the decoded cutout again keeps every channel bit-exact.
	again, err := decoded.EncodeBytes()
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	redecoded, err := LoadBytes(again)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if !bytes.Equal(decoded.Pix, redecoded.Pix) {
		t.Error("second round trip changed pixels")
	}
}

func TestProcessDecodeError(t *testing.T) {
	c := newCutter(t)

	err := c.Process(context.Background(), bytes.NewReader([]byte("not an image")), &bytes.Buffer{})
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Errorf("expected *DecodeError, got %v", err)
	}
}

func TestRemoveAll(t *testing.T) {
	c := newCutter(t)

	imgs := []image.Image{framedBlock(), fill(10, 10, gray), noise(16, 9, 5)}
	outs, err := c.RemoveAll(context.Background(), imgs)
	if err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if len(outs) != len(imgs) {
		t.Fatalf("got %d results, want %d", len(outs), len(imgs))
	}
	for i := range imgs {
		if imgs[i].Bounds().Size() != outs[i].Bounds().Size() {
			t.Errorf("image %d: size %v, want %v", i, outs[i].Bounds().Size(), imgs[i].Bounds().Size())
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"Default", func(*Config) {}, true},
		{"ZeroStride", func(c *Config) { c.BorderStride = 0 }, false},
		{"NegativeMargin", func(c *Config) { c.Margin = -1 }, false},
		{"NoRefinement", func(c *Config) { c.MorphPasses = 0 }, true},
		{"ErodeMinTooLarge", func(c *Config) { c.ErodeMin = 10 }, false},
		{"DilateMinNegative", func(c *Config) { c.DilateMin = -1 }, false},
		{"FeatherScaleAboveOne", func(c *Config) { c.FeatherScale = 1.5 }, false},
		{"NoFeather", func(c *Config) { c.FeatherRadius = 0 }, true},
		{"NegativeWorkers", func(c *Config) { c.Workers = -2 }, false},
		{"NegativeTimeout", func(c *Config) { c.Timeout = -time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			var perr *ProcessingError
			if !errors.As(err, &perr) || perr.Stage != "config" {
				t.Errorf("expected ProcessingError at stage config, got %v", err)
			}
			if _, err := New(cfg); err == nil {
				t.Error("New accepted an invalid config")
			}
		})
	}
}
