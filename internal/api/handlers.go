package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trend-engine/internal/analysis"
	"trend-engine/internal/market"
)

// errorResponse sends a uniform error body.
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse sends a uniform success body.
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.started).String(),
	})
}

// analyzeRequest is the POST /api/v1/analyze body. Callers either name a
// series to fetch or submit bars directly.
type analyzeRequest struct {
	Symbol    string       `json:"symbol" binding:"required"`
	Timeframe string       `json:"timeframe"`
	Lookback  int          `json:"lookback"`
	Bars      []market.Bar `json:"bars"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	timeframe := market.Timeframe(req.Timeframe)
	if req.Timeframe == "" {
		timeframe = market.TF15m
	}
	if !market.IsValidTimeframe(timeframe) {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe "+req.Timeframe)
		return
	}

	bars := req.Bars
	if len(bars) == 0 {
		lookback := req.Lookback
		if lookback <= 0 {
			lookback = 200
		}
		fetched, err := s.provider.GetBars(c.Request.Context(), req.Symbol, timeframe, lookback)
		if err != nil {
			errorResponse(c, http.StatusBadGateway, "fetching bars: "+err.Error())
			return
		}
		bars = fetched
	}

	result, err := s.engine.AnalyzeTrendChange(c.Request.Context(), bars, req.Symbol, timeframe)
	if err != nil {
		errorResponse(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	successResponse(c, result)
}

func (s *Server) handleDecision(c *gin.Context) {
	symbol := c.Param("symbol")

	timeframe := market.Timeframe(c.DefaultQuery("timeframe", string(market.TF15m)))
	if !market.IsValidTimeframe(timeframe) {
		errorResponse(c, http.StatusBadRequest, "unknown timeframe "+string(timeframe))
		return
	}

	lookback, err := strconv.Atoi(c.DefaultQuery("lookback", "200"))
	if err != nil || lookback <= 0 {
		errorResponse(c, http.StatusBadRequest, "lookback must be a positive integer")
		return
	}

	var signalType analysis.SignalType
	switch c.DefaultQuery("direction", "bullish") {
	case "bullish":
		signalType = analysis.SignalBullishTrendChange
	case "bearish":
		signalType = analysis.SignalBearishTrendChange
	default:
		errorResponse(c, http.StatusBadRequest, "direction must be bullish or bearish")
		return
	}

	bars, err := s.provider.GetBars(c.Request.Context(), symbol, timeframe, lookback)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "fetching bars: "+err.Error())
		return
	}

	accept, confidence, err := s.engine.ShouldTradeTrend(c.Request.Context(), bars, symbol, timeframe, signalType)
	if err != nil {
		errorResponse(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	successResponse(c, gin.H{
		"symbol":     symbol,
		"timeframe":  string(timeframe),
		"direction":  signalType.String(),
		"accept":     accept,
		"confidence": confidence,
	})
}

func (s *Server) handleTrendlines(c *gin.Context) {
	symbol := c.Param("symbol")
	lines := s.engine.Registry().Lines(symbol)
	successResponse(c, gin.H{
		"symbol":     symbol,
		"trendlines": lines,
		"count":      len(lines),
	})
}

func (s *Server) handleScannerStatus(c *gin.Context) {
	if s.scanner == nil {
		errorResponse(c, http.StatusNotFound, "scanner is disabled")
		return
	}
	last := s.scanner.LastResult()
	if last == nil {
		successResponse(c, gin.H{"status": "waiting_for_first_scan"})
		return
	}
	successResponse(c, last)
}

func (s *Server) handleScanNow(c *gin.Context) {
	if s.scanner == nil {
		errorResponse(c, http.StatusNotFound, "scanner is disabled")
		return
	}
	go s.scanner.Scan()
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "scan triggered"})
}
