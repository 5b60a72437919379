// Package server exposes the dashboard workflow and the chart view over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/export"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/repository"
	"github.com/joseph-ayodele/finreport/internal/storage"
	"github.com/joseph-ayodele/finreport/internal/workflow"
)

// Options wires the server to its collaborators. Files, Jobs and Health are
// optional; their routes are only registered when set.
type Options struct {
	Sessions workflow.Deps // template for every new session
	// NewExtractor, when set, replaces Sessions.Extractor with a fresh one per session.
	NewExtractor func() (extract.Extractor, error)
	ChartPath    string
	Normalizer   chart.Normalizer
	Formatter    chart.Formatter
	Exporter     *export.Service
	Files        *storage.LocalStore
	Jobs         repository.ExtractJobRepository
	Health       func(ctx context.Context) error
	APIToken     string
	Logger       *slog.Logger
}

type Server struct {
	opts     Options
	router   *gin.Engine
	sessions *Registry
	logger   *slog.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ChartPath == "" {
		opts.ChartPath = "/chart"
	}
	if opts.Normalizer == (chart.Normalizer{}) {
		opts.Normalizer = chart.DefaultNormalizer
	}
	if opts.Formatter == (chart.Formatter{}) {
		opts.Formatter = chart.NewFormatter("")
	}
	if opts.Exporter == nil {
		opts.Exporter = export.NewService(opts.Jobs, opts.Logger)
	}
	s := &Server{
		opts:     opts,
		router:   gin.New(),
		sessions: NewRegistry(opts.Sessions),
		logger:   opts.Logger,
	}
	s.sessions.newExtractor = opts.NewExtractor
	// one extra byte so an oversized upload still reaches the size rule
	s.router.MaxMultipartMemory = opts.Sessions.MaxBytes + 1
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger))

	r.GET("/healthz", s.healthz)

	// chart view and stored documents are fetched by browsers and by the
	// extraction service, so they sit outside the token gate
	r.GET(s.opts.ChartPath, s.chartJSON)
	r.GET(s.opts.ChartPath+".png", s.chartPNG)
	r.GET(s.opts.ChartPath+".xlsx", s.chartXLSX)
	if s.opts.Files != nil {
		r.GET("/files/:name", s.serveFile)
	}

	api := r.Group("/api", bearerToken(s.opts.APIToken))
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:id", s.getSession)
		api.POST("/sessions/:id/file", s.selectFile)
		api.POST("/sessions/:id/drag", s.drag)
		api.POST("/sessions/:id/upload", s.upload)
		api.POST("/sessions/:id/generate", s.generate)
		api.POST("/sessions/:id/reset", s.reset)

		if s.opts.Jobs != nil {
			api.GET("/documents/:id/jobs", s.listJobs)
			api.GET("/documents/:id/jobs.xlsx", s.jobsXLSX)
		}
	}
}

// Handler returns the router, for http.Server and tests.
func (s *Server) Handler() http.Handler { return s.router }

// Sessions exposes the session registry.
func (s *Server) Sessions() *Registry { return s.sessions }

func (s *Server) healthz(c *gin.Context) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Health(ctx); err != nil {
			s.logger.Warn("server.health_failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}
