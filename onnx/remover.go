// Package onnx removes backgrounds with a U2-Net style salient object model
// run through ONNX Runtime. It satisfies bgcut.Remover and can be chained in
// front of, or behind, the heuristic cutter.
package onnx

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/jcollins5513/bgcut"
	"github.com/jcollins5513/bgcut/internal/logger"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	inputSize = 320
	// blurSigma softens the upscaled mask edge by roughly two pixels.
	blurSigma = 1.0
)

var (
	mean = [3]float32{0.485, 0.456, 0.406}
	std  = [3]float32{0.229, 0.224, 0.225}

	envOnce sync.Once
	envErr  error
)

// Config selects the model and tunes the runtime session.
type Config struct {
	ModelPath         string `mapstructure:"model_path"`
	SharedLibraryPath string `mapstructure:"shared_library_path"`
	IntraOpNumThreads int    `mapstructure:"intra_op_num_threads"`
	InterOpNumThreads int    `mapstructure:"inter_op_num_threads"`
	CpuMemArena       bool   `mapstructure:"cpu_mem_arena"`
	MemPattern        bool   `mapstructure:"mem_pattern"`
}

// Remover owns one session and its fixed-shape tensors. Runs are serialized.
type Remover struct {
	modelPath string

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var _ bgcut.Remover = &Remover{}

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

func newSession(cfg *Config) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "session options")
	}
	defer opts.Destroy()

	settings := []struct {
		name  string
		apply func() error
	}{
		{"intra-op threads", func() error { return opts.SetIntraOpNumThreads(max(1, cfg.IntraOpNumThreads)) }},
		{"inter-op threads", func() error { return opts.SetInterOpNumThreads(max(1, cfg.InterOpNumThreads)) }},
		{"cpu memory arena", func() error { return opts.SetCpuMemArena(cfg.CpuMemArena) }},
		{"memory pattern", func() error { return opts.SetMemPattern(cfg.MemPattern) }},
		{"execution mode", func() error { return opts.SetExecutionMode(ort.ExecutionModeSequential) }},
		{"graph optimization", func() error { return opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll) }},
	}
	for _, s := range settings {
		if err := s.apply(); err != nil {
			return nil, errors.Wrapf(err, "set %s", s.name)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{"input.1"}, []string{"1959"}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open model %s", cfg.ModelPath)
	}
	return session, nil
}

// New initializes the runtime environment once per process, opens a session
// for cfg.ModelPath and allocates the input and output tensors.
func New(cfg *Config) (*Remover, error) {
	if cfg == nil || cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if err := initEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, errors.Wrap(err, "init onnxruntime")
	}

	r := &Remover{modelPath: cfg.ModelPath}
	var err error
	if r.session, err = newSession(cfg); err != nil {
		return nil, err
	}
	if r.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, inputSize, inputSize)); err != nil {
		_ = r.Close()
		return nil, errors.Wrap(err, "allocate input tensor")
	}
	if r.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, inputSize, inputSize)); err != nil {
		_ = r.Close()
		return nil, errors.Wrap(err, "allocate output tensor")
	}
	return r, nil
}

// Close releases the session and tensors.
func (r *Remover) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.input != nil {
		err = r.input.Destroy()
		r.input = nil
	}
	if r.output != nil {
		if e := r.output.Destroy(); err == nil {
			err = e
		}
		r.output = nil
	}
	if r.session != nil {
		if e := r.session.Destroy(); err == nil {
			err = e
		}
		r.session = nil
	}
	return err
}

// RemoveBackground runs the model at 320x320, thresholds the saliency map
// with Otsu, scales it back to the source size with a light blur, and uses
// it as the alpha channel of the returned *image.NRGBA.
func (r *Remover) RemoveBackground(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, &bgcut.ProcessingError{Stage: "onnx", Err: err}
	}
	probs, err := r.saliency(imaging.Resize(img, inputSize, inputSize, imaging.Linear))
	if err != nil {
		return nil, &bgcut.ProcessingError{Stage: "onnx", Err: err}
	}

	cut := otsu(probs)
	b := img.Bounds()
	alpha := alphaFromMask(binaryMask(probs, cut), b.Dx(), b.Dy())

	out := imaging.Clone(img)
	applyAlpha(out, alpha)

	logger.Entry(ctx).WithField("model", r.modelPath).WithField("threshold", cut).Debug("onnx cutout done")
	return out, nil
}

// saliency returns per-pixel foreground probabilities for a 320x320 input.
func (r *Remover) saliency(src *image.NRGBA) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil, errors.New("remover is closed")
	}

	fillInput(r.input.GetData(), src)
	if err := r.session.Run([]ort.Value{r.input}, []ort.Value{r.output}); err != nil {
		return nil, errors.Wrap(err, "inference")
	}

	logits := r.output.GetData()
	probs := make([]float32, len(logits))
	for i, v := range logits {
		probs[i] = sigmoid(v)
	}
	return probs, nil
}

// fillInput writes src as normalized CHW planes into dst.
func fillInput(dst []float32, src *image.NRGBA) {
	plane := inputSize * inputSize
	for y := range inputSize {
		row := src.Pix[y*src.Stride:]
		for x := range inputSize {
			p := row[x*4:]
			i := y*inputSize + x
			for c := range 3 {
				dst[c*plane+i] = (float32(p[c])/255 - mean[c]) / std[c]
			}
		}
	}
}

func sigmoid(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}

// otsu picks the probability cut that maximizes the between-class variance
// of a 256-bin histogram. The cut is the upper edge of the last background
// bin, so binaryMask's strict comparison agrees with the binning.
func otsu(probs []float32) float32 {
	if len(probs) == 0 {
		return 0.5
	}
	var hist [256]float64
	for _, p := range probs {
		hist[min(max(int(p*255), 0), 255)]++
	}

	total := float64(len(probs))
	var muT float64
	for i, n := range hist {
		muT += float64(i) * n / total
	}

	var w0, mu0, best float64
	cut := 0
	for i, n := range hist {
		w0 += n / total
		mu0 += float64(i) * n / total
		if w0 <= 0 || 1-w0 < 1e-12 {
			continue
		}
		d := muT*w0 - mu0
		if between := d * d / (w0 * (1 - w0)); between > best {
			best, cut = between, i
		}
	}
	return float32(cut+1) / 255
}

// binaryMask marks probabilities above cut as opaque.
func binaryMask(probs []float32, cut float32) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, inputSize, inputSize))
	for i := range min(len(probs), len(mask.Pix)) {
		if probs[i] > cut {
			mask.Pix[i] = 255
		}
	}
	return mask
}

// alphaFromMask scales mask to w x h and blurs the edge.
func alphaFromMask(mask *image.Gray, w, h int) *image.NRGBA {
	return imaging.Blur(imaging.Resize(mask, w, h, imaging.Linear), blurSigma)
}

// applyAlpha copies the gray level of alpha into the alpha channel of dst.
// Both images must be origin-anchored with the same size.
func applyAlpha(dst, alpha *image.NRGBA) {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	for y := range h {
		d := dst.Pix[y*dst.Stride:]
		a := alpha.Pix[y*alpha.Stride:]
		for x := range w {
			d[x*4+3] = a[x*4]
		}
	}
}
