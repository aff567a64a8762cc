package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kigaligo/internal/services"
)

// VehicleHandler serves the real-time proximity query that the map screen
// polls.
type VehicleHandler struct {
	proximity *services.ProximityService
	log       zerolog.Logger
}

func NewVehicleHandler(proximity *services.ProximityService, log zerolog.Logger) *VehicleHandler {
	return &VehicleHandler{
		proximity: proximity,
		log:       log,
	}
}

// rawQueryFrom copies the known query parameters. Anything else the client
// sends (cache-busting `_t`, `nocache`) is ignored and cannot influence the
// cache key.
func rawQueryFrom(c *gin.Context) services.RawQuery {
	return services.RawQuery{
		Lat:      c.Query("lat"),
		Lng:      c.Query("lng"),
		Radius:   c.Query("radius"),
		Type:     c.Query("type"),
		Since:    c.Query("since"),
		AutoSeed: c.Query("auto_seed"),
	}
}

// Realtime handles GET /api/v1/vehicles/realtime.
//
// Go Learning Note — Request Context:
// c.Request.Context() is cancelled when the client disconnects. Passing it
// down means a store fetch for an abandoned poll stops early instead of
// holding a connection.
func (h *VehicleHandler) Realtime(c *gin.Context) {
	q, err := h.proximity.ParseQuery(rawQueryFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.proximity.FindNearby(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, result)
}
