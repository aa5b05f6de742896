package introspect

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/infrastructure/monitoring"
	"github.com/componentry/componentd/internal/model"
	"github.com/componentry/componentd/internal/shared/moniker"
)

// Config contains introspection server configuration.
type Config struct {
	Addr      string
	RateLimit RateLimitConfig
	// DisableRateLimit turns the per-IP limiter off, for embedders that
	// front the surface with their own gateway.
	DisableRateLimit bool
}

// Server wraps the gin engine serving the introspection surface.
type Server struct {
	engine  *gin.Engine
	model   *model.Model
	metrics *monitoring.Metrics
	logger  *zap.Logger
	httpSrv *http.Server
}

// NewServer creates the introspection server over a model.
func NewServer(cfg Config, m *model.Model, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	if !cfg.DisableRateLimit {
		engine.Use(rateLimit(cfg.RateLimit))
	}

	s := &Server{
		engine:  engine,
		model:   m,
		metrics: metrics,
		logger:  logger,
		httpSrv: &http.Server{Addr: cfg.Addr, Handler: engine},
	}

	engine.GET("/", s.root)
	engine.GET("/health", s.health)
	engine.GET("/tree", s.tree)
	engine.GET("/realms/*moniker", s.realm)
	engine.GET("/stats", s.stats)
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			metrics.Registry(), promhttp.HandlerOpts{})))
	}
	return s
}

// Handler exposes the engine for tests and embedders.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until Shutdown or a listener error.
func (s *Server) Run() error {
	s.logger.Info("introspection surface listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "componentd",
		"status":  "running",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"root_running": s.model.Root().HasRuntime(),
	})
}

func (s *Server) tree(c *gin.Context) {
	c.JSON(http.StatusOK, s.model.SnapshotTree())
}

// realm serves the snapshot of one instance. The wildcard captures the
// full moniker path, so "/realms/a:0/inner:0" names the nested instance
// and "/realms/" names the root.
func (s *Server) realm(c *gin.Context) {
	raw := c.Param("moniker")
	if raw == "" {
		raw = "/"
	}
	mon, err := moniker.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	realm, err := s.model.Look(c.Request.Context(), mon)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, realm.Snapshot())
}

func (s *Server) stats(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.metrics.GetSnapshot())
}
