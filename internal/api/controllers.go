package api

import (
	"errors"
	"net/http"
	"strconv"

	"tradesim-core/internal/advisor"
	"tradesim-core/internal/balance"
	"tradesim-core/internal/ledger"
	"tradesim-core/pkg/instruments"

	"github.com/gin-gonic/gin"
)

// writeEngineError maps engine errors onto the API error taxonomy.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, instruments.ErrUnknownInstrument):
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "UNKNOWN_INSTRUMENT",
			"error": err.Error(),
		})
	case errors.Is(err, balance.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":  "INSUFFICIENT_BALANCE",
			"error": err.Error(),
		})
	case errors.Is(err, ledger.ErrNoPrice):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "NO_PRICE_AVAILABLE",
			"error": err.Error(),
		})
	case errors.Is(err, ledger.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_ORDER",
			"error": err.Error(),
		})
	case errors.Is(err, advisor.ErrInvalidSignalAction):
		c.JSON(http.StatusConflict, gin.H{
			"code":  "INVALID_SIGNAL_ACTION",
			"error": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "INTERNAL_ERROR",
			"error": err.Error(),
		})
	}
}

// --- System ---

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.GetSystemStatus())
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Metrics())
}

// --- Market ---

func (s *Server) getInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instruments": s.Engine.Instruments()})
}

func (s *Server) getCandles(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_PAYLOAD",
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	series, err := s.Engine.Candles(c.Param("id"), limit)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instrument_id": c.Param("id"),
		"candles":       series,
	})
}

// --- Trading ---

func (s *Server) getPositions(c *gin.Context) {
	positions := s.Engine.Positions(c.Query("instrument"))
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) openPosition(c *gin.Context) {
	var req struct {
		InstrumentID string  `json:"instrument_id"`
		Direction    string  `json:"direction"`
		Stake        float64 `json:"stake"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	pos, err := s.Engine.OpenPosition(c.Request.Context(), req.InstrumentID, ledger.Direction(req.Direction), req.Stake)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pos)
}

func (s *Server) getHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"history": s.Engine.History(limit)})
}

// --- Player ---

func (s *Server) getPlayer(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Player())
}

func (s *Server) setProMode(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	if err := s.Engine.SetProMode(c.Request.Context(), req.Enabled); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pro_mode": req.Enabled})
}

func (s *Server) setTutorialSeen(c *gin.Context) {
	if err := s.Engine.MarkTutorialSeen(c.Request.Context()); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tutorial_seen": true})
}

// --- Signals ---

func (s *Server) getSignals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"signals": s.Engine.Signals()})
}

func (s *Server) followSignal(c *gin.Context) {
	pos, err := s.Engine.FollowSignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pos)
}

func (s *Server) ignoreSignal(c *gin.Context) {
	if err := s.Engine.IgnoreSignal(c.Request.Context(), c.Param("id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ignored": c.Param("id")})
}

// --- Instruments ---

func (s *Server) openInstrument(c *gin.Context) {
	if err := s.Engine.OpenInstrument(c.Request.Context(), c.Param("id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"opened": c.Param("id")})
}

func (s *Server) closeInstrument(c *gin.Context) {
	if err := s.Engine.CloseInstrument(c.Request.Context(), c.Param("id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": c.Param("id")})
}

func (s *Server) activateInstrument(c *gin.Context) {
	if err := s.Engine.ActivateInstrument(c.Request.Context(), c.Param("id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": c.Param("id")})
}

func (s *Server) getTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": s.Engine.Tabs()})
}
