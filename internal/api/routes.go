package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kigaligo/internal/api/handlers"
	"kigaligo/internal/api/middleware"
)

// ActiveCounter reports the number of active vehicles for the health check.
type ActiveCounter interface {
	CountActive(ctx context.Context) (int, error)
}

const healthTimeout = 2 * time.Second

type Router struct {
	vehicleHandler  *handlers.VehicleHandler
	locationHandler *handlers.LocationHandler
	fleetHandler    *handlers.FleetHandler
	streamHandler   *handlers.StreamHandler
	stopHandler     *handlers.StopHandler

	limiter *middleware.ClientLimiter
	health  ActiveCounter
}

// NewRouter wires the handlers. limiter may be nil to disable rate limiting.
func NewRouter(
	vehicleHandler *handlers.VehicleHandler,
	locationHandler *handlers.LocationHandler,
	fleetHandler *handlers.FleetHandler,
	streamHandler *handlers.StreamHandler,
	stopHandler *handlers.StopHandler,
	limiter *middleware.ClientLimiter,
	health ActiveCounter,
) *Router {
	return &Router{
		vehicleHandler:  vehicleHandler,
		locationHandler: locationHandler,
		fleetHandler:    fleetHandler,
		streamHandler:   streamHandler,
		stopHandler:     stopHandler,
		limiter:         limiter,
		health:          health,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	engine.GET("/health", r.healthCheck)

	v1 := engine.Group("/api/v1")
	{
		vehicles := v1.Group("/vehicles")

		// Read endpoints polled by the map, rate limited per client.
		realtime := vehicles.Group("")
		realtime.Use(middleware.RateLimit(r.limiter))
		{
			realtime.GET("/realtime", r.vehicleHandler.Realtime)
			realtime.GET("/stream", r.streamHandler.Stream)
		}

		// Device endpoints
		vehicles.PATCH("/:id/position", middleware.DeviceAuth(), r.locationHandler.UpdatePosition)

		// Fleet management
		vehicles.POST("", r.locationHandler.RegisterVehicle)
		vehicles.GET("/:id", r.locationHandler.GetVehicle)
		vehicles.DELETE("/:id", r.locationHandler.DeactivateVehicle)
		vehicles.POST("/seed", r.fleetHandler.Seed)

		v1.POST("/simulation/step", r.fleetHandler.SimulationStep)

		v1.GET("/stops/eta", middleware.RateLimit(r.limiter), r.stopHandler.ETA)
	}
}

func (r *Router) healthCheck(c *gin.Context) {
	if r.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	count, err := r.health.CountActive(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "vehicle store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_vehicles": count})
}
