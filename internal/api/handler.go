package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"execution-core/internal/execution"
	"execution-core/pkg/venues/common"
)

// Server exposes the execution coordinator over HTTP.
type Server struct {
	Router *gin.Engine
	Coord  *execution.Coordinator
	Logger *zap.Logger
}

func NewServer(coord *execution.Coordinator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))

	s := &Server{
		Router: r,
		Coord:  coord,
		Logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.POST("/orders", s.submitOrder)
		api.POST("/orders/batch", s.submitBatch)
		api.GET("/orders", s.listOrders)
		api.DELETE("/orders/:id", s.cancelOrder)
		api.DELETE("/orders", s.cancelAll)
		api.PUT("/orders/:id", s.amendOrder)

		api.GET("/book", s.getBook)
		api.POST("/estimate", s.estimateFill)
		api.GET("/balance", s.getBalance)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"venues": s.Coord.Venues(),
	})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

func venueParam(c *gin.Context) (common.Venue, bool) {
	v := common.Venue(c.Query("venue"))
	switch v {
	case common.VenueKalshi, common.VenuePolymarket:
		return v, true
	}
	respondError(c, http.StatusBadRequest, "bad_venue", "venue must be kalshi or polymarket")
	return "", false
}
