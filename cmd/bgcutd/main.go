// Command bgcutd serves background removal over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcollins5513/bgcut/internal/config"
	"github.com/jcollins5513/bgcut/internal/logger"
	"github.com/jcollins5513/bgcut/internal/server"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configPath = flag.String("config", "config.yaml", "YAML config file, empty for defaults")
	envPath    = flag.String("env", ".env", "dotenv file loaded before the config")
)

func main() {
	flag.Parse()

	boot := logger.New(false)
	if err := config.LoadEnv(*envPath); err != nil {
		boot.WithError(err).Fatal("env")
	}
	path := *configPath
	if _, err := os.Stat(path); path != "" && err != nil {
		boot.WithField("config", path).Warn("config file not found, using defaults")
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		boot.WithError(err).Fatal("config")
	}

	log := logger.New(cfg.Verbose)
	log.WithField("version", Version).
		WithField("git_commit", GitCommit).
		WithField("method", cfg.Method).
		Info("starting bgcutd")

	remover, closeFn, err := cfg.NewRemover()
	if err != nil {
		log.WithError(err).Fatal("failed to build remover")
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("close remover")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.New(cfg, remover, nil, log).Run(ctx); err != nil {
		log.WithError(err).Error("server exited")
	}
}
