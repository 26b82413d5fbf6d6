// Package api exposes the trend engine over HTTP: on-demand analysis,
// should-trade decisions, trendline registry inspection, scanner status,
// health and prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trend-engine/config"
	"trend-engine/internal/engine"
	"trend-engine/internal/market"
	"trend-engine/internal/monitoring"
	"trend-engine/internal/scanner"
)

// RateLimiter provides simple in-memory rate limiting per endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *engine.Engine
	provider    market.BarProvider
	scanner     *scanner.Scanner
	cfg         config.ServerConfig
	log         zerolog.Logger
	rateLimiter *RateLimiter
	started     time.Time
}

// NewServer wires the router. The scanner may be nil when the scan loop is
// disabled.
func NewServer(cfg config.ServerConfig, eng *engine.Engine, provider market.BarProvider, sc *scanner.Scanner, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8090"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		engine:      eng,
		provider:    provider,
		scanner:     sc,
		cfg:         cfg,
		log:         log.With().Str("component", "api").Logger(),
		rateLimiter: NewRateLimiter(120, time.Minute),
		started:     time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "rate limit exceeded",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	api := s.router.Group("/api/v1")
	api.Use(s.rateLimitMiddleware())
	{
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/analyze/:symbol/decision", s.handleDecision)
		api.GET("/trendlines/:symbol", s.handleTrendlines)
		api.GET("/scanner/status", s.handleScannerStatus)
		api.POST("/scanner/scan", s.handleScanNow)
	}
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("http server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down http server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
