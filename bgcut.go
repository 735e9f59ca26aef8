// Package bgcut removes the background around a single dominant subject
// using local color, texture and geometry heuristics. No model is involved:
// border colors stand in for the backdrop, a per-pixel score is thresholded
// into a mask, the mask is cleaned with 3x3 morphology, and the edge is
// feathered into the alpha channel.
package bgcut

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/jcollins5513/bgcut/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Remover turns a photo into a cutout with a transparent background.
type Remover interface {
	RemoveBackground(ctx context.Context, img image.Image) (image.Image, error)
}

// Cutter runs the heuristic pipeline. It holds no per-image state and is safe
// for concurrent use.
type Cutter struct {
	cfg   Config
	masks *maskPool
}

var _ Remover = &Cutter{}

// New validates cfg and returns a Cutter that runs with it.
func New(cfg Config) (*Cutter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cutter{cfg: cfg, masks: newMaskPool()}, nil
}

// Config returns the thresholds the cutter was built with.
func (c *Cutter) Config() Config { return c.cfg }

// Result carries the intermediate structures of one run alongside the
// finished buffer.
type Result struct {
	Buffer     *PixelBuffer
	Samples    []ColorSample
	Confidence ConfidenceMap
	Mask       BackgroundMask
}

// Segment runs sampling, scoring, refinement and feathering over buf,
// writing the alpha channel in place.
func (c *Cutter) Segment(ctx context.Context, buf *PixelBuffer) (*Result, error) {
	if err := buf.check(); err != nil {
		return nil, &ProcessingError{Stage: "load", Err: err}
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	log := logger.Entry(ctx).WithField("size", image.Pt(buf.W, buf.H).String())
	res := &Result{Buffer: buf}

	err := c.stage(ctx, "sample", func() error {
		res.Samples = SampleBorder(buf, c.cfg.BorderStride)
		log.Debugf("collected %d border samples", len(res.Samples))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = c.stage(ctx, "estimate", func() error {
		var err error
		res.Confidence, res.Mask, err = EstimateBackground(ctx, buf, res.Samples, c.cfg)
		if err == nil {
			log.Debugf("background before refinement: %.3f", res.Mask.Ratio())
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = c.stage(ctx, "refine", func() error {
		err := refine(ctx, res.Mask, buf.W, buf.H, c.cfg, c.masks)
		if err == nil {
			log.Debugf("background after refinement: %.3f", res.Mask.Ratio())
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = c.stage(ctx, "feather", func() error {
		return Feather(ctx, buf, res.Mask, c.cfg)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Cutter) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &ProcessingError{Stage: name, Err: err}
	}
	start := time.Now()
	if err := fn(); err != nil {
		return err
	}
	logger.Entry(ctx).WithField("stage", name).WithField("took", time.Since(start)).Debug("stage done")
	return nil
}

// RemoveBackground copies img into a new buffer and returns the cutout as
// *image.NRGBA with the same dimensions.
func (c *Cutter) RemoveBackground(ctx context.Context, img image.Image) (image.Image, error) {
	buf := NewPixelBuffer(img)
	if _, err := c.Segment(ctx, buf); err != nil {
		return nil, err
	}
	return buf.Image(), nil
}

// Process decodes r, removes the background and writes a PNG to w.
func (c *Cutter) Process(ctx context.Context, r io.Reader, w io.Writer) error {
	buf, err := Load(r)
	if err != nil {
		return err
	}
	if _, err := c.Segment(ctx, buf); err != nil {
		return err
	}
	return buf.Encode(w)
}

// RemoveAll processes independent images concurrently. The output slice is
// index-aligned with imgs.
func (c *Cutter) RemoveAll(ctx context.Context, imgs []image.Image) ([]image.Image, error) {
	out := make([]image.Image, len(imgs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.workers())
	for i, img := range imgs {
		g.Go(func() error {
			cut, err := c.RemoveBackground(ctx, img)
			if err != nil {
				return err
			}
			out[i] = cut
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
