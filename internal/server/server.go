// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the analyzer, the expansion engine, and the chat
// service over a JSON HTTP API built on gin.
//
// Endpoints:
//
//	POST /analyze-input            classify text and resolve root metadata
//	POST /expand-graph             expand a graph from root metadata
//	POST /claude-chat              answer a question about a paper
//	POST /sessions                 create a session
//	GET  /sessions/:id             session snapshot
//	POST /sessions/:id/generate    analyze then expand into the session
//	POST /sessions/:id/expand      re-anchor on a node of the session graph
//	POST /sessions/:id/select      select a node
//	POST /sessions/:id/chat        chat about the selected node
//	GET  /health                   liveness
//	GET  /metrics                  Prometheus exposition
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/research-spider/internal/expand"
	"github.com/pdiddy/research-spider/internal/observability"
	"github.com/pdiddy/research-spider/internal/session"
	"github.com/pdiddy/research-spider/pkg/types"
)

// Analyzer turns submitted text into root metadata.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (types.InputType, types.PaperMetadata, error)
}

// Expander builds a graph from an expansion request.
type Expander interface {
	Expand(ctx context.Context, req types.ExpansionRequest) (types.GraphResponse, expand.Stats, error)
}

// Chatter answers questions about a paper.
type Chatter interface {
	Answer(ctx context.Context, paper types.PaperMetadata, related []types.PaperMetadata, message string) (string, error)
}

// Server holds the handler dependencies.
type Server struct {
	analyzer Analyzer
	expander Expander
	chat     Chatter
	sessions *session.Store

	expansion    types.ExpansionConfig
	contextLimit int

	validate *validator.Validate
	gatherer prometheus.Gatherer
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records HTTP metrics and serves g on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithSessions replaces the default session store.
func WithSessions(st *session.Store) Option {
	return func(s *Server) { s.sessions = st }
}

// New creates a Server. cfg supplies expansion defaults and the default
// chat context size.
func New(a Analyzer, e Expander, c Chatter, cfg types.Config, opts ...Option) *Server {
	s := &Server{
		analyzer:     a,
		expander:     e,
		chat:         c,
		expansion:    cfg.Expansion,
		contextLimit: cfg.Chat.ContextLimit,
		validate:     newValidator(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewStore(cfg.Server.SessionTTL)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe(), cors())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/analyze-input", s.handleAnalyze)
	r.POST("/expand-graph", s.handleExpand)
	r.POST("/claude-chat", s.handleChat)

	sessions := r.Group("/sessions")
	{
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.POST("/:id/generate", s.handleSessionGenerate)
		sessions.POST("/:id/expand", s.handleSessionExpand)
		sessions.POST("/:id/select", s.handleSessionSelect)
		sessions.POST("/:id/chat", s.handleSessionChat)
	}
	return r
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
