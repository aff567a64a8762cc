package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kigaligo/internal/services"
)

// StopHandler serves the stop ETA board.
type StopHandler struct {
	stops *services.StopETAService
	log   zerolog.Logger
}

func NewStopHandler(stops *services.StopETAService, log zerolog.Logger) *StopHandler {
	return &StopHandler{
		stops: stops,
		log:   log,
	}
}

// ETA handles GET /api/v1/stops/eta.
func (h *StopHandler) ETA(c *gin.Context) {
	q, err := h.stops.ParseQuery(services.StopRawQuery{
		Lat:      c.Query("lat"),
		Lng:      c.Query("lng"),
		Radius:   c.Query("radius"),
		StopType: c.Query("stop_type"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.stops.FindStops(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, result)
}
