package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kigaligo/internal/config"
	"kigaligo/internal/domain/entities"
	"kigaligo/internal/services"
)

// FleetHandler groups the demo-fleet operations: seeding an area and
// advancing the movement simulation by hand.
type FleetHandler struct {
	seeder    services.Seeder
	simulator *services.Simulator
	seedCfg   config.SeedConfig
	log       zerolog.Logger
}

func NewFleetHandler(seeder services.Seeder, simulator *services.Simulator, seedCfg config.SeedConfig, log zerolog.Logger) *FleetHandler {
	return &FleetHandler{
		seeder:    seeder,
		simulator: simulator,
		seedCfg:   seedCfg,
		log:       log,
	}
}

// SeedRequest is the optional body of POST /api/v1/vehicles/seed. Omitted
// fields fall back to the configured seed defaults.
type SeedRequest struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	RadiusKm *float64 `json:"radius_km" binding:"omitempty,gte=0,lte=50"`
	Total    *int     `json:"total" binding:"omitempty,gte=1,lte=500"`
}

// SeedResponse reports a seed run.
type SeedResponse struct {
	services.SeedResult
	Center   entities.Location `json:"center"`
	RadiusKm float64           `json:"radius_km"`
}

// Seed handles POST /api/v1/vehicles/seed. An empty body seeds around the
// configured city center.
func (h *FleetHandler) Seed(c *gin.Context) {
	var req SeedRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	center := entities.NewLocation(h.seedCfg.CenterLat, h.seedCfg.CenterLng)
	if req.Lat != nil {
		center.Latitude = *req.Lat
	}
	if req.Lng != nil {
		center.Longitude = *req.Lng
	}
	radius := h.seedCfg.RadiusKm
	if req.RadiusKm != nil {
		radius = *req.RadiusKm
	}
	total := h.seedCfg.TotalHint
	if req.Total != nil {
		total = *req.Total
	}

	result, err := h.seeder.Seed(c.Request.Context(), center, radius, total)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, SeedResponse{SeedResult: result, Center: center, RadiusKm: radius})
}

// SimulationStep handles POST /api/v1/simulation/step.
func (h *FleetHandler) SimulationStep(c *gin.Context) {
	result, err := h.simulator.Step(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
