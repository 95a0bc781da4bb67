package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"towdispatch/internal/handler"
	"towdispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler  *handler.BookingHandler
	DriverHandler   *handler.DriverHandler
	TrackingHandler *handler.TrackingHandler
	WSHandler       *handler.WSHandler
	TokenVerifier   middleware.TokenVerifier
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Public booking funnel.
		v1.POST("/bookings", deps.BookingHandler.SubmitBooking)
		v1.POST("/resolve-location", deps.BookingHandler.ResolveLocation)
		v1.POST("/estimates", deps.BookingHandler.Estimate)

		// Public tracker. The tracking token is the access control.
		v1.GET("/track/:token", deps.TrackingHandler.Track)
		v1.GET("/track/:token/ws", deps.WSHandler.TrackerFeed)

		// Driver dashboard.
		driver := v1.Group("/driver")
		{
			driver.POST("/login", deps.DriverHandler.Login)

			authed := driver.Group("")
			authed.Use(middleware.DriverAuthMiddleware(deps.TokenVerifier))
			{
				authed.GET("/bookings", deps.DriverHandler.ListBookings)
				authed.GET("/bookings/ws", deps.WSHandler.DriverFeed)
				authed.POST("/bookings/:id/accept", deps.DriverHandler.AcceptBooking)
				authed.POST("/bookings/:id/refuse", deps.DriverHandler.RefuseBooking)
				authed.POST("/bookings/:id/complete", deps.DriverHandler.CompleteBooking)
				authed.POST("/bookings/:id/location", deps.DriverHandler.RecordLocation)
				authed.POST("/bookings/:id/location/link", deps.DriverHandler.RecordLocationLink)
				authed.POST("/tracking/stop", deps.DriverHandler.StopTracking)
			}
		}
	}

	return router
}
