// Package config loads the settings shared by the bgcut CLI and service.
package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/jcollins5513/bgcut"
	"github.com/jcollins5513/bgcut/onnx"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "BGCUT"

// Method names accepted by Config.Method.
const (
	MethodHeuristic = "heuristic"
	MethodONNX      = "onnx"
)

// Config is the full application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Cutout bgcut.Config `mapstructure:"cutout"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Cache  CacheConfig  `mapstructure:"cache"`
	ONNX   onnx.Config  `mapstructure:"onnx"`

	// Method picks the primary remover.
	Method string `mapstructure:"method"`
	// Fallback returns the unprocessed image when every remover fails.
	Fallback bool `mapstructure:"fallback"`
	Verbose  bool `mapstructure:"verbose"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"`
	MaxUpload    int64         `mapstructure:"max_upload"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type FetchConfig struct {
	CacheBytes int64         `mapstructure:"cache_bytes"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	MaxBytes   int64         `mapstructure:"max_bytes"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig sizes the in-memory cache of finished cutouts.
type CacheConfig struct {
	Bytes int64         `mapstructure:"bytes"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// LoadEnv copies variables from the given dotenv files into the process
// environment. Missing files are skipped.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// Load reads configPath as YAML on top of the defaults. An empty path skips
// the file. BGCUT_* environment variables override both, with dots in the
// key replaced by underscores (BGCUT_CUTOUT_THRESHOLD).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the method name and the pipeline thresholds.
func (c *Config) Validate() error {
	switch c.Method {
	case MethodHeuristic:
	case MethodONNX:
		if c.ONNX.ModelPath == "" {
			return errors.New("onnx method needs onnx.model_path")
		}
	default:
		return errors.Errorf("unknown method %q", c.Method)
	}
	return c.Cutout.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload", 20*1024*1024)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	d := bgcut.DefaultConfig()
	v.SetDefault("cutout.border_stride", d.BorderStride)
	v.SetDefault("cutout.margin", d.Margin)
	v.SetDefault("cutout.margin_is_background", d.MarginIsBackground)
	v.SetDefault("cutout.color_distance", d.ColorDistance)
	v.SetDefault("cutout.color_weight", d.ColorWeight)
	v.SetDefault("cutout.brightness", d.Brightness)
	v.SetDefault("cutout.brightness_weight", d.BrightnessWeight)
	v.SetDefault("cutout.saturation", d.Saturation)
	v.SetDefault("cutout.saturation_weight", d.SaturationWeight)
	v.SetDefault("cutout.texture_radius", d.TextureRadius)
	v.SetDefault("cutout.texture_variance", d.TextureVariance)
	v.SetDefault("cutout.texture_weight", d.TextureWeight)
	v.SetDefault("cutout.edge_proximity", d.EdgeProximity)
	v.SetDefault("cutout.edge_weight", d.EdgeWeight)
	v.SetDefault("cutout.threshold", d.Threshold)
	v.SetDefault("cutout.erode_min", d.ErodeMin)
	v.SetDefault("cutout.dilate_min", d.DilateMin)
	v.SetDefault("cutout.morph_passes", d.MorphPasses)
	v.SetDefault("cutout.feather_radius", d.FeatherRadius)
	v.SetDefault("cutout.feather_scale", d.FeatherScale)
	v.SetDefault("cutout.workers", d.Workers)
	v.SetDefault("cutout.timeout", d.Timeout)

	v.SetDefault("fetch.cache_bytes", 256*1024*1024)
	v.SetDefault("fetch.cache_ttl", time.Hour)
	v.SetDefault("fetch.max_bytes", 32*1024*1024)
	v.SetDefault("fetch.timeout", 30*time.Second)

	v.SetDefault("cache.bytes", 128*1024*1024)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("onnx.model_path", "")
	v.SetDefault("onnx.shared_library_path", "")
	v.SetDefault("onnx.intra_op_num_threads", 1)
	v.SetDefault("onnx.inter_op_num_threads", 1)
	v.SetDefault("onnx.cpu_mem_arena", true)
	v.SetDefault("onnx.mem_pattern", true)

	v.SetDefault("method", MethodHeuristic)
	v.SetDefault("fallback", false)
	v.SetDefault("verbose", false)
}

// FetcherOptions maps the fetch section onto bgcut.Fetcher options.
func (c *Config) FetcherOptions() []bgcut.FetcherOption {
	return []bgcut.FetcherOption{
		bgcut.WithCache(c.Fetch.CacheBytes, c.Fetch.CacheTTL),
		bgcut.WithMaxBytes(c.Fetch.MaxBytes),
		bgcut.WithTimeout(c.Fetch.Timeout),
	}
}
