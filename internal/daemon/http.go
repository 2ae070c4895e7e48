package daemon

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wraps Daemon with the gin-based RPC HTTP surface, graceful
// shutdown, and caller-IP authorization middleware.
type Server struct {
	daemon *Daemon
	logger *zap.Logger
	addr   string

	httpServer *http.Server
	stopCh     chan struct{}
}

// NewServer constructs an RPC server bound to the daemon's configured
// rpc_listen_address. Start() must be called to begin serving.
func NewServer(d *Daemon, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := d.cfg.RPCListenAddress
	if addr == "" {
		addr = ":8420"
	}
	return &Server{
		daemon: d,
		logger: logger.With(zap.String("component", "rpc_server")),
		addr:   addr,
		stopCh: make(chan struct{}),
	}
}

// Start runs the HTTP server until ctx is cancelled or Stop is called,
// performing a graceful shutdown on exit. Mirrors the teacher server's
// serverErrors-channel-plus-select shutdown pattern.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("rpc server starting", zap.String("address", s.addr))
		serverErrors <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case <-s.stopCh:
		s.logger.Info("server stop requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during shutdown", zap.Error(err))
		return err
	}
	return nil
}

// Stop requests a graceful shutdown of the server.
func (s *Server) Stop() {
	close(s.stopCh)
}

func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(recoveryMiddleware(s.logger))
	router.Use(requestLoggingMiddleware(s.logger))

	router.GET("/status", s.handleStatus)
	router.GET("/health", s.handleHealth)

	control := router.Group("/", controlAuthMiddleware(s.daemon))
	control.POST("/dome/control", s.handleDomeControl)
	control.POST("/tel/control", s.handleTelControl)
	control.POST("/telescope/stop", s.handleStopTelescope)
	control.POST("/dome/window/clear", s.handleClearDomeWindow)
	control.POST("/schedule", s.handleScheduleObservations)

	pipeline := router.Group("/", pipelineAuthMiddleware(s.daemon))
	pipeline.POST("/notify/frame", s.handleNotifyFrame)
	pipeline.POST("/notify/guide", s.handleNotifyGuide)

	return router
}

// recoveryMiddleware catches panics in handlers, logs them, and returns a
// 500 instead of taking the process down. It is the daemon's only recover:
// the tick loop and the telescope worker loop have none.
func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered in rpc handler",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path))
				c.JSON(http.StatusInternalServerError, gin.H{"code": CommunicationErrorCode, "message": "internal error"})
				c.Abort()
			}
		}()
		c.Next()
	}
}

func requestLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("rpc request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("caller_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func controlAuthMiddleware(d *Daemon) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !d.IsControlCaller(callerAddr(c)) {
			c.JSON(http.StatusForbidden, resultJSON(invalidControlIP))
			c.Abort()
			return
		}
		c.Next()
	}
}

func pipelineAuthMiddleware(d *Daemon) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !d.IsPipelineCaller(callerAddr(c)) {
			// Pipeline authorization failures are ignored, not erred, per §7.
			c.JSON(http.StatusOK, gin.H{})
			c.Abort()
			return
		}
		c.Next()
	}
}

func callerAddr(c *gin.Context) string {
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}
