package bgcut

import (
	"context"
	"errors"
	"image"
	"testing"
)

type removerFunc func(context.Context, image.Image) (image.Image, error)

func (f removerFunc) RemoveBackground(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

func failing(err error, calls *int) Remover {
	return removerFunc(func(context.Context, image.Image) (image.Image, error) {
		*calls++
		return nil, err
	})
}

func TestPassthrough(t *testing.T) {
	img := framedBlock()
	out, err := Passthrough{}.RemoveBackground(context.Background(), img)
	if err != nil {
		t.Fatalf("RemoveBackground: %v", err)
	}
	if out != image.Image(img) {
		t.Error("expected the source image back")
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	img := framedBlock()
	boom := errors.New("boom")

	t.Run("FirstSuccessWins", func(t *testing.T) {
		calls := 0
		out, err := Chain(failing(boom, &calls), newCutter(t), failing(boom, &calls)).RemoveBackground(ctx, img)
		if err != nil {
			t.Fatalf("RemoveBackground: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 failing call, got %d", calls)
		}
		if a := out.(*image.NRGBA).Pix[3]; a != 0 {
			t.Errorf("expected cutout corner alpha 0, got %d", a)
		}
	})

	t.Run("FallbackToOriginal", func(t *testing.T) {
		calls := 0
		out, err := Chain(failing(boom, &calls), Passthrough{}).RemoveBackground(ctx, img)
		if err != nil {
			t.Fatalf("RemoveBackground: %v", err)
		}
		if out != image.Image(img) {
			t.Error("expected the source image back")
		}
	})

	t.Run("AllFail", func(t *testing.T) {
		calls := 0
		last := errors.New("last")
		_, err := Chain(failing(boom, &calls), failing(last, &calls)).RemoveBackground(ctx, img)
		if !errors.Is(err, last) {
			t.Errorf("expected the last error, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("CancelStops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Chain(newCutter(t), Passthrough{}).RemoveBackground(ctx, img)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, err := Chain().RemoveBackground(ctx, img); err == nil {
			t.Error("expected error for empty chain")
		}
	})
}
