// Command bgcut removes the background of a single image.
//
//	bgcut -in photo.jpg -out cutout.png
//	bgcut -in https://example.com/car.jpg -backdrop studio.jpg -out ad.jpg
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jcollins5513/bgcut"
	"github.com/jcollins5513/bgcut/internal/config"
	"github.com/jcollins5513/bgcut/internal/logger"
	"github.com/sirupsen/logrus"
)

var (
	inPath     = flag.String("in", "", "source image path or http(s) URL")
	outPath    = flag.String("out", "cutout.png", "output path; the extension picks the format")
	backdrop   = flag.String("backdrop", "", "optional backdrop path or URL to composite the cutout onto")
	method     = flag.String("method", "", "remover: heuristic or onnx (overrides config)")
	modelPath  = flag.String("model", "", "onnx model path (overrides config)")
	fallback   = flag.Bool("fallback", false, "write the unprocessed image when removal fails")
	cropOut    = flag.Bool("crop", false, "trim the cutout to its subject")
	maskPath   = flag.String("mask", "", "also write the alpha mask as a grayscale image")
	configPath = flag.String("config", "", "YAML config file")
	envPath    = flag.String("env", ".env", "dotenv file loaded before the config")
	timeout    = flag.Duration("timeout", 0, "overall deadline, 0 for none")
	verbose    = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()
	log := logger.New(*verbose)

	if *inPath == "" {
		log.Fatal("-in is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	ctx = logger.WithLogEntry(ctx, logrus.NewEntry(log))

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("bgcut failed")
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(*envPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "method":
			cfg.Method = *method
		case "model":
			cfg.ONNX.ModelPath = *modelPath
		case "fallback":
			cfg.Fallback = *fallback
		}
	})
	if *method == config.MethodONNX && cfg.ONNX.ModelPath == "" {
		cfg.ONNX.ModelPath = "./models/u2netp.onnx"
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Entry(ctx)
	fetcher := bgcut.NewFetcher(cfg.FetcherOptions()...)

	remover, closeFn, err := cfg.NewRemover()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("close remover")
		}
	}()
	if cfg.Fallback {
		remover = bgcut.Chain(remover, bgcut.Passthrough{})
	}

	src, err := open(ctx, fetcher, *inPath)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := remover.RemoveBackground(ctx, src.Image())
	if err != nil {
		return err
	}
	log.WithField("method", cfg.Method).Infof("removed background in %v", time.Since(start))

	if *cropOut {
		if out, err = bgcut.Crop(out, nil); err != nil {
			return err
		}
	}
	if *maskPath != "" {
		if err := imaging.Save(bgcut.MaskFromAlpha(out), *maskPath); err != nil {
			return &bgcut.EncodeError{Err: err}
		}
	}
	if *backdrop != "" {
		bg, err := open(ctx, fetcher, *backdrop)
		if err != nil {
			return err
		}
		out = bgcut.Composite(out, bg.Image())
	}

	if err := imaging.Save(out, *outPath); err != nil {
		return &bgcut.EncodeError{Err: err}
	}
	log.WithField("out", *outPath).Info("saved")
	return nil
}

// open loads a local file or, for http(s) sources, fetches it.
func open(ctx context.Context, f *bgcut.Fetcher, src string) (*bgcut.PixelBuffer, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return f.Fetch(ctx, src)
	}
	file, err := os.Open(src)
	if err != nil {
		return nil, &bgcut.DecodeError{Err: err}
	}
	defer file.Close()
	return bgcut.Load(file)
}
