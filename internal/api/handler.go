// Package api exposes the gateway over HTTP and WebSocket.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"mt5-gateway/internal/gateway"
	"mt5-gateway/internal/monitor"
	"mt5-gateway/internal/push"
	"mt5-gateway/pkg/db"
)

// Server wires HTTP endpoints around the gateway facade.
type Server struct {
	Router  *gin.Engine
	Gateway *gateway.Gateway
	DB      *db.Database
	Hub     *push.Hub
	Metrics *monitor.Metrics

	JWTSecret  string
	secretHash []byte
}

// NewServer builds the router with the full middleware stack.
func NewServer(gw *gateway.Gateway, database *db.Database, hub *push.Hub, metrics *monitor.Metrics, apiSecret, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	// The plaintext secret never lives on the server past construction.
	hash, err := bcrypt.GenerateFromPassword([]byte(apiSecret), bcrypt.DefaultCost)
	if err != nil {
		panic("api: hash api secret: " + err.Error())
	}

	s := &Server{
		Router:     r,
		Gateway:    gw,
		DB:         database,
		Hub:        hub,
		Metrics:    metrics,
		JWTSecret:  jwtSecret,
		secretHash: hash,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", s.getMetrics)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/token", s.issueToken)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/connect", s.connect)
			protected.POST("/disconnect", s.disconnect)

			protected.GET("/symbols", s.listSymbols)
			protected.GET("/symbols/:symbol", s.getSymbol)
			protected.GET("/symbols/:symbol/filling", s.getSymbolFilling)
			protected.GET("/price/:symbol", s.getPrice)

			protected.POST("/orders", s.placeOrder)
			protected.GET("/positions", s.listPositions)
			protected.POST("/positions/close", s.closePosition)

			protected.GET("/journal/orders", s.journalOrders)
			protected.GET("/journal/closes", s.journalCloses)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, s.Gateway.Health())
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
