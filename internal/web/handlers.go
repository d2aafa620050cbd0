package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tradescan/internal/scanner"
)

// filterKeys lists the query parameters forwarded to the scanner as
// filters.
var filterKeys = []string{
	"min_volume",
	"min_market_cap",
	"min_change_24h",
	"max_change_24h",
	"min_fib_position",
	"max_fib_position",
}

type errorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// scanRequest is the POST /api/scan body.
type scanRequest struct {
	Limit            int               `json:"limit"`
	IncludeFibonacci bool              `json:"include_fibonacci"`
	Filters          map[string]string `json:"filters"`
}

// getCoins handles GET /api/coins.
func (s *Server) getCoins(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{
				Error:      "invalid limit: " + raw,
				StatusCode: http.StatusBadRequest,
			})
			return
		}
		limit = parsed
	}
	includeFibonacci := strings.EqualFold(c.DefaultQuery("include_fibonacci", "false"), "true")

	filters := map[string]string{}
	for _, key := range filterKeys {
		if value := c.Query(key); value != "" {
			filters[key] = value
		}
	}

	result := s.scanner.ScanTopCoins(c.Request.Context(), limit, includeFibonacci, filters)
	c.JSON(http.StatusOK, result)
}

// getCoinBySymbol handles GET /api/coins/:symbol.
func (s *Server) getCoinBySymbol(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	includeFibonacci := strings.EqualFold(c.DefaultQuery("include_fibonacci", "true"), "true")

	coin, err := s.scanner.CoinBySymbol(c.Request.Context(), symbol, includeFibonacci)
	if err != nil {
		if errors.Is(err, scanner.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{
				Error:      "coin with symbol '" + symbol + "' not found",
				StatusCode: http.StatusNotFound,
			})
			return
		}
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, coin)
}

// getFibonacci handles GET /api/coins/:symbol/fibonacci.
func (s *Server) getFibonacci(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	coin, err := s.scanner.CoinBySymbol(c.Request.Context(), symbol, true)
	if err != nil {
		if errors.Is(err, scanner.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{
				Error:      "coin with symbol '" + symbol + "' not found",
				StatusCode: http.StatusNotFound,
			})
			return
		}
		s.internalError(c, err)
		return
	}
	if coin.FibonacciAnalysis == nil {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:      "fibonacci analysis not available for '" + symbol + "'",
			StatusCode: http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, coin.FibonacciAnalysis)
}

// getATHATL handles GET /api/coins/:symbol/ath-atl.
func (s *Server) getATHATL(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	ctx := c.Request.Context()

	topCoins, err := s.client.GetTopCoins(ctx, 100, true)
	if err != nil {
		s.internalError(c, err)
		return
	}

	coinID := ""
	for _, coin := range topCoins {
		if coin.Symbol == symbol {
			coinID = coin.ID
			break
		}
	}
	if coinID == "" {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:      "coin with symbol '" + symbol + "' not found",
			StatusCode: http.StatusNotFound,
		})
		return
	}

	data, err := s.client.GetCoinATHATL(ctx, coinID, true)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:      "ath/atl data not available for '" + symbol + "'",
			StatusCode: http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, data)
}

// postScan handles POST /api/scan.
func (s *Server) postScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:      "invalid request body: " + err.Error(),
			StatusCode: http.StatusBadRequest,
		})
		return
	}
	if req.Limit == 0 {
		req.Limit = 100
	}

	result := s.scanner.ScanTopCoins(c.Request.Context(), req.Limit, req.IncludeFibonacci, req.Filters)
	c.JSON(http.StatusOK, result)
}

// health handles GET /api/health.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"cache":     s.cache.Stats(),
		"version":   "1.0.0",
	})
}

// ping handles GET /api/ping.
func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, errorResponse{
		Error:      "internal server error",
		StatusCode: http.StatusInternalServerError,
	})
}
