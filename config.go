package bgcut

import (
	"runtime"
	"time"
)

// Config holds every threshold of the segmentation pipeline. The zero value
// is not usable; start from DefaultConfig.
type Config struct {
	// BorderStride is the spacing between border samples along each edge.
	BorderStride int `mapstructure:"border_stride"`
	// Margin is the width of the unscored frame around the image.
	Margin int `mapstructure:"margin"`
	// MarginIsBackground marks the unscored frame as background. The frame
	// is where the border samples come from.
	MarginIsBackground bool `mapstructure:"margin_is_background"`

	ColorDistance    float64 `mapstructure:"color_distance"`
	ColorWeight      float64 `mapstructure:"color_weight"`
	Brightness       float64 `mapstructure:"brightness"`
	BrightnessWeight float64 `mapstructure:"brightness_weight"`
	Saturation       float64 `mapstructure:"saturation"`
	SaturationWeight float64 `mapstructure:"saturation_weight"`
	TextureRadius    int     `mapstructure:"texture_radius"`
	TextureVariance  float64 `mapstructure:"texture_variance"`
	TextureWeight    float64 `mapstructure:"texture_weight"`
	EdgeProximity    int     `mapstructure:"edge_proximity"`
	EdgeWeight       float64 `mapstructure:"edge_weight"`

	// Threshold is the score a pixel must exceed to count as background.
	Threshold float64 `mapstructure:"threshold"`

	// ErodeMin is the minimum 3x3 background count for a background pixel
	// to survive erosion.
	ErodeMin int `mapstructure:"erode_min"`
	// DilateMin is the 3x3 background count a pixel must exceed to become
	// background during dilation.
	DilateMin int `mapstructure:"dilate_min"`
	// MorphPasses is the number of erosion+dilation rounds. Zero disables
	// refinement.
	MorphPasses int `mapstructure:"morph_passes"`

	FeatherRadius int     `mapstructure:"feather_radius"`
	FeatherScale  float64 `mapstructure:"feather_scale"`

	// Workers bounds the goroutines used per stage. Zero means GOMAXPROCS.
	Workers int `mapstructure:"workers"`
	// Timeout bounds a whole run. Zero means no deadline.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the tuned thresholds: stride 5, color cutoff 40,
// score threshold 0.6, one morphology pass and a 3px feather at 0.3.
func DefaultConfig() Config {
	return Config{
		BorderStride:       5,
		Margin:             2,
		MarginIsBackground: true,
		ColorDistance:      40,
		ColorWeight:        0.3,
		Brightness:         200,
		BrightnessWeight:   0.4,
		Saturation:         0.15,
		SaturationWeight:   0.3,
		TextureRadius:      3,
		TextureVariance:    8,
		TextureWeight:      0.2,
		EdgeProximity:      10,
		EdgeWeight:         0.3,
		Threshold:          0.6,
		ErodeMin:           5,
		DilateMin:          6,
		MorphPasses:        1,
		FeatherRadius:      3,
		FeatherScale:       0.3,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	const stage = "config"
	switch {
	case c.BorderStride <= 0:
		return processingErrorf(stage, "border stride must be positive, got %d", c.BorderStride)
	case c.Margin < 0:
		return processingErrorf(stage, "margin must not be negative, got %d", c.Margin)
	case c.TextureRadius < 0:
		return processingErrorf(stage, "texture radius must not be negative, got %d", c.TextureRadius)
	case c.EdgeProximity < 0:
		return processingErrorf(stage, "edge proximity must not be negative, got %d", c.EdgeProximity)
	case c.MorphPasses < 0:
		return processingErrorf(stage, "morph passes must not be negative, got %d", c.MorphPasses)
	case c.ErodeMin < 0 || c.ErodeMin > 9:
		return processingErrorf(stage, "erode min must be within [0, 9], got %d", c.ErodeMin)
	case c.DilateMin < 0 || c.DilateMin > 9:
		return processingErrorf(stage, "dilate min must be within [0, 9], got %d", c.DilateMin)
	case c.FeatherRadius < 0:
		return processingErrorf(stage, "feather radius must not be negative, got %d", c.FeatherRadius)
	case c.FeatherScale < 0 || c.FeatherScale > 1:
		return processingErrorf(stage, "feather scale must be within [0, 1], got %g", c.FeatherScale)
	case c.Workers < 0:
		return processingErrorf(stage, "workers must not be negative, got %d", c.Workers)
	case c.Timeout < 0:
		return processingErrorf(stage, "timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
