package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"taximeter/internal/handler"
	"taximeter/internal/middleware"
	internalRedis "taximeter/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	MeterHandler     *handler.MeterHandler
	FareHandler      *handler.FareHandler
	IdempotencyStore internalRedis.IdempotencyStoreInterface // nil disables idempotency
	NewRelicApp      *newrelic.Application
	Logger           logrus.FieldLogger
	CORSOrigins      []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORSMiddleware(deps.CORSOrigins))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Meter routes.
		meter := v1.Group("/meter")
		{
			meter.GET("", deps.MeterHandler.GetMeter)
			meter.POST("/start", deps.MeterHandler.StartTrip)
			meter.POST("/move", deps.MeterHandler.SetMoving)
			meter.POST("/stop", deps.MeterHandler.SetStopped)
			meter.POST("/finish", deps.MeterHandler.FinishTrip)
			meter.GET("/receipt", deps.MeterHandler.GetReceipt)
		}

		// Fare routes.
		fare := v1.Group("/fare")
		{
			fare.GET("", deps.FareHandler.Quote)
			fare.GET("/rates", deps.FareHandler.Rates)
		}
	}

	return router
}
