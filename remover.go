package bgcut

import (
	"context"
	"image"

	"github.com/jcollins5513/bgcut/internal/logger"
	"github.com/pkg/errors"
)

// Passthrough returns its input unchanged. Put it last in a Chain to fall
// back to the unprocessed image.
type Passthrough struct{}

var _ Remover = Passthrough{}

// RemoveBackground returns img itself.
func (Passthrough) RemoveBackground(_ context.Context, img image.Image) (image.Image, error) {
	return img, nil
}

type chain []Remover

// Chain tries each remover in order and returns the first success. A
// cancelled context stops the chain.
func Chain(removers ...Remover) Remover {
	return chain(removers)
}

func (c chain) RemoveBackground(ctx context.Context, img image.Image) (image.Image, error) {
	if len(c) == 0 {
		return nil, errors.New("empty remover chain")
	}
	log := logger.Entry(ctx)
	var err error
	for i, r := range c {
		var out image.Image
		out, err = r.RemoveBackground(ctx, img)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		log.WithError(err).Warnf("remover %d of %d failed", i+1, len(c))
	}
	return nil, err
}
