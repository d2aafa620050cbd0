package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradescan/internal/cache"
	"tradescan/internal/scanner"
	"tradescan/models"
)

// Server exposes the scanner over a JSON REST API.
type Server struct {
	engine  *gin.Engine
	scanner *scanner.Service
	client  models.MarketDataClient
	cache   *cache.Cache
	logger  zerolog.Logger
}

// NewServer builds the gin engine with all routes registered.
func NewServer(scannerSvc *scanner.Service, client models.MarketDataClient, cacheSvc *cache.Cache, corsOrigins string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:  gin.New(),
		scanner: scannerSvc,
		client:  client,
		cache:   cacheSvc,
		logger:  log.With().Str("component", "web").Logger(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())
	s.engine.Use(corsMiddleware(corsOrigins))

	api := s.engine.Group("/api")
	{
		api.GET("/coins", s.getCoins)
		api.GET("/coins/:symbol", s.getCoinBySymbol)
		api.GET("/coins/:symbol/fibonacci", s.getFibonacci)
		api.GET("/coins/:symbol/ath-atl", s.getATHATL)
		api.POST("/scan", s.postScan)
		api.GET("/health", s.health)
		api.GET("/ping", s.ping)
	}

	return s
}

// Run starts the HTTP server on addr, blocking until it stops.
func (s *Server) Run(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("Starting API server")
	return s.engine.Run(addr)
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestLogger logs each request; health probes are skipped to reduce noise.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		c.Next()
		if path == "/api/health" || path == "/api/ping" {
			return
		}
		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Msg("Request handled")
	}
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware(origins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
