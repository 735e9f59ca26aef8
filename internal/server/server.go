// Package server exposes background removal over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcollins5513/bgcut"
	"github.com/jcollins5513/bgcut/internal/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server owns the gin engine and its handler.
type Server struct {
	cfg     *config.Config
	log     *logrus.Logger
	engine  *gin.Engine
	handler *Handler
}

// New wires the routes around remover. Remote sources are loaded through
// fetcher; a nil fetcher gets one built from cfg. With cfg.Fallback set a
// failed removal answers with the original image, which is never cached.
func New(cfg *config.Config, remover bgcut.Remover, fetcher *bgcut.Fetcher, log *logrus.Logger) *Server {
	if fetcher == nil {
		fetcher = bgcut.NewFetcher(cfg.FetcherOptions()...)
	}
	h := &Handler{
		method:    cfg.Method,
		remover:   remover,
		fallback:  cfg.Fallback,
		fetcher:   fetcher,
		cache:     newResultCache(cfg.Cache.Bytes, cfg.Cache.TTL),
		maxUpload: cfg.Server.MaxUpload,
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(log))
	if cfg.Server.MaxUpload > 0 {
		r.MaxMultipartMemory = cfg.Server.MaxUpload
	}

	r.GET("/health", h.Health)
	api := r.Group("/api/v1")
	{
		api.POST("/cutout", h.Cutout)
		api.POST("/composite", h.Composite)
	}

	return &Server{cfg: cfg, log: log, engine: r, handler: h}
}

// Handler exposes the routes for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", srv.Addr).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
