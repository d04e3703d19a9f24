package api

import (
	"net/http"
	"time"

	"tradesim-core/internal/engine"
	"tradesim-core/internal/events"
	"tradesim-core/internal/monitor"

	"github.com/gin-gonic/gin"
)

// Server wires the HTTP surface around the engine service and the event bus.
type Server struct {
	Router    *gin.Engine
	Engine    engine.Service
	Bus       *events.Bus
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	SessionID string
}

// NewServer builds the router with the full middleware stack and routes.
func NewServer(svc engine.Service, bus *events.Bus, metrics *monitor.SystemMetrics, sessionID, jwtSecret string) *Server {
	r := gin.New()
	// Instrument ids carry a slash (EUR/USD); match on the raw path so an
	// escaped %2F stays one parameter.
	r.UseRawPath = true

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Engine:    svc,
		Bus:       bus,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		SessionID: sessionID,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/instruments", s.getInstruments)
		api.GET("/market/:id/candles", s.getCandles)

		// Session issuance (no auth required)
		api.POST("/session", s.createSession)

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/positions", s.getPositions)
			protected.POST("/positions", s.openPosition)
			protected.GET("/history", s.getHistory)
			protected.GET("/player", s.getPlayer)

			protected.GET("/signals", s.getSignals)
			protected.POST("/signals/:id/follow", s.followSignal)
			protected.POST("/signals/:id/ignore", s.ignoreSignal)

			protected.POST("/instruments/:id/open", s.openInstrument)
			protected.DELETE("/instruments/:id", s.closeInstrument)
			protected.PUT("/instruments/:id/activate", s.activateInstrument)
			protected.GET("/instruments/tabs", s.getTabs)

			protected.PUT("/settings/pro-mode", s.setProMode)
			protected.PUT("/settings/tutorial-seen", s.setTutorialSeen)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start serves until the listener fails.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
