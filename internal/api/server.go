package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/imamik/clusterscaler/internal/autoscaler"
	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/loadmetrics"
	"github.com/imamik/clusterscaler/internal/resources"
)

// DefaultAddr is the listen address of the daemon's API server.
const DefaultAddr = ":8080"

const shutdownTimeout = 10 * time.Second

// gin's mode is process-wide.
var modeOnce sync.Once

// Backend is the part of the reconciler the API serves.
type Backend interface {
	Collector() *loadmetrics.Collector
	RequestScale(nodeType string, delta int) (int, error)
	Summary() autoscaler.Summary
	ReconcileOnce(ctx context.Context) (autoscaler.Decision, error)
}

// ReportRequest is the body of POST /v1/report.
type ReportRequest struct {
	NodeID        string             `json:"node_id" binding:"required"`
	Usage         resources.Vector   `json:"usage"`
	PendingDemand []resources.Vector `json:"pending_demand"`
}

// ScaleRequest is the body of POST /v1/scale.
type ScaleRequest struct {
	NodeType string `json:"node_type" binding:"required"`
	Delta    int    `json:"delta"`
}

// ScaleResponse is the reply to a scale request.
type ScaleResponse struct {
	NodeType string `json:"node_type"`
	Floor    int    `json:"floor"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error bool   `json:"error"`
	Cause string `json:"cause"`
}

// Options configures the server.
type Options struct {
	Addr  string
	Debug bool
}

// Server is the HTTP control surface of a running reconciler.
type Server struct {
	backend Backend
	addr    string
	router  *gin.Engine
}

// NewServer builds the router. Nothing listens until Run.
func NewServer(ctx context.Context, backend Backend, opts Options) *Server {
	modeOnce.Do(func() {
		if !opts.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
	})
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}

	s := &Server{backend: backend, addr: opts.Addr, router: gin.New()}
	s.router.Use(requestLogger(log.FromContext(ctx).WithName("api")))
	s.router.Use(gin.Recovery())

	v1 := s.router.Group("/v1")
	{
		v1.POST("/report", s.report)
		v1.POST("/scale", s.scale)
		v1.GET("/status", s.status)
		v1.POST("/reconcile", s.reconcile)
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	s.router.GET("/healthz", s.healthz)
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger := log.FromContext(ctx)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "failed to parse report: "+err.Error())
		return
	}
	report := loadmetrics.Report{
		NodeID:        req.NodeID,
		Usage:         req.Usage,
		PendingDemand: req.PendingDemand,
	}
	if err := report.Validate(); err != nil {
		abort(c, http.StatusBadRequest, "failed to parse report: "+err.Error())
		return
	}
	s.backend.Collector().Report(report)
	c.Status(http.StatusAccepted)
}

func (s *Server) scale(c *gin.Context) {
	var req ScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "failed to parse scale request: "+err.Error())
		return
	}
	floor, err := s.backend.RequestScale(req.NodeType, req.Delta)
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, autoscaler.ErrInvalidScale):
		abort(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, ScaleResponse{NodeType: req.NodeType, Floor: floor})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Summary())
}

func (s *Server) reconcile(c *gin.Context) {
	d, err := s.backend.ReconcileOnce(c.Request.Context())
	if err != nil {
		abort(c, http.StatusInternalServerError, "reconcile failed: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) healthz(c *gin.Context) {
	sum := s.backend.Summary()
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"lastTick":            sum.LastTick,
		"consecutiveFailures": sum.ConsecutiveFailures,
	})
}

func abort(c *gin.Context, code int, cause string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: true, Cause: cause})
}
