// Package web serves the goal list as a JSON API.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"

	"github.com/gin-gonic/gin"
)

// EventLog records completed mutations. Both store.SQLiteStore and store.MemoryStore satisfy it.
type EventLog interface {
	AppendEvent(ctx context.Context, typ model.EventType, priority int, payload any) (model.Event, error)
	ReadEvents(ctx context.Context, limit int) ([]model.Event, error)
}

type ServerConfig struct {
	Addr     string
	Repo     *goals.Repository
	Events   EventLog
	Logger   *slog.Logger
	ReadOnly bool
}

// Server owns the repository for the lifetime of the process. The repository does no locking of
// its own, so handlers take mu: shared for reads, exclusive for writes.
type Server struct {
	mu     sync.RWMutex
	cfg    ServerConfig
	log    *slog.Logger
	router *gin.Engine
	hub    *resourceHub
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.Repo == nil {
		return nil, errors.New("web: repository is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{cfg: cfg, log: logger, hub: newResourceHub()}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)
	api := router.Group("/api")
	{
		api.GET("/goals", s.handleList)
		api.GET("/goals/:priority", s.handleGet)
		api.POST("/goals", s.writer(s.handleCreate))
		api.PUT("/goals/:priority", s.writer(s.handleUpdate))
		api.POST("/goals/move", s.writer(s.handleMove))
		api.POST("/goals/normalize", s.writer(s.handleNormalize))
		api.DELETE("/goals/:priority", s.writer(s.handleDelete))
		api.DELETE("/goals", s.writer(s.handleDeleteAll))
		api.GET("/events", s.handleEvents)
		api.GET("/stream", s.handleStream)
	}
	s.router = router
	return s, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving goals API", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// writer takes the exclusive lock, rejects writes on a read-only server, and wakes stream
// subscribers after a successful write.
func (s *Server) writer(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.ReadOnly {
			c.JSON(http.StatusForbidden, gin.H{"error": "server is read-only"})
			return
		}
		func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			h(c)
		}()
		if c.Writer.Status() < 300 {
			s.hub.broadcast()
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok\n")
}

func (s *Server) appendEvent(ctx context.Context, typ model.EventType, priority int, payload any) {
	if s.cfg.Events == nil {
		return
	}
	if _, err := s.cfg.Events.AppendEvent(ctx, typ, priority, payload); err != nil {
		s.log.Warn("append event failed", "type", typ, "error", err)
	}
}

// statusFor maps repository errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case goals.IsValidation(err):
		return http.StatusBadRequest
	case goals.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, goals.ErrContractViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
