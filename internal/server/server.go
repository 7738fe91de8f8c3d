// Package server exposes the pipeline over HTTP.
package server

// #region imports
import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/pipeline"
	"github.com/danielpatrickdp/cag-verifier/internal/stats"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// #endregion

// #region server

// Server routes HTTP requests to a pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	registry *prometheus.Registry
	engine   *gin.Engine
	logger   *zap.Logger
}

// New builds the gin engine and a private Prometheus registry carrying the
// pipeline's stats and the Go runtime collectors.
func New(p *pipeline.Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline: p,
		registry: prometheus.NewRegistry(),
		engine:   gin.New(),
		logger:   logger.Named("server"),
	}
	s.registry.MustRegister(
		stats.NewCollector(p.Stats()),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.engine.Use(gin.Recovery(), s.accessLog())
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.engine.Group("/v1")
	v1.POST("/verify", s.handleVerify)
	v1.POST("/answer", s.handleAnswer)
	v1.GET("/stats", s.handleStats)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// #endregion server

// #region handlers

func (s *Server) handleVerify(c *gin.Context) {
	s.handle(c, s.pipeline.Verify)
}

func (s *Server) handleAnswer(c *gin.Context) {
	s.handle(c, s.pipeline.Answer)
}

func (s *Server) handle(c *gin.Context, run func(context.Context, pipeline.Request) (pipeline.Result, error)) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed JSON body: " + err.Error()})
		return
	}

	res, err := run(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("pipeline failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Stats().Snapshot())
}

// #endregion handlers

// #region middleware

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// #endregion middleware
