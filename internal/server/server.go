// Package server exposes the counting pipeline over HTTP. It parses
// uploads, invokes the injected mask source and the counting core, and
// serializes results; no counting logic lives here.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mithun50/silkynet/internal/config"
	"github.com/mithun50/silkynet/internal/counting"
	"github.com/mithun50/silkynet/internal/inference"
)

// Version is set by ldflags at build time.
var Version = "dev"

// Server wires the HTTP layer to the counting pipeline and the mask
// source. All fields are set at construction; request handling shares no
// mutable state.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	source   inference.MaskSource
	pipeline *counting.Pipeline
}

// New builds a server around an explicit mask source. The source is
// injected rather than constructed lazily so tests can substitute a stub
// and startup failures happen at startup.
func New(cfg *config.Config, log *zap.Logger, source inference.MaskSource) *Server {
	pipeline := counting.NewPipeline(counting.Config{
		Width:             cfg.Mask.Width,
		Height:            cfg.Mask.Height,
		BinarizeThreshold: uint8(cfg.Mask.BinarizeThreshold),
		WatershedWindow:   cfg.Mask.WatershedWindow,
	}, log)

	return &Server{
		cfg:      cfg,
		log:      log,
		source:   source,
		pipeline: pipeline,
	}
}

// Router assembles the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(s.cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(s.log))
	r.Use(CORS())

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/segment", s.handleSegment)
		api.POST("/batch", s.handleBatch)
	}

	return r
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Port,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	s.log.Info("listening", zap.String("addr", srv.Addr), zap.String("version", Version))
	return srv.ListenAndServe()
}
