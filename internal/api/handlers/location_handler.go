package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kigaligo/internal/api/middleware"
	"kigaligo/internal/domain/entities"
	"kigaligo/internal/services"
)

// LocationHandler is the write side: vehicle registration and device
// position reports.
type LocationHandler struct {
	locationService *services.LocationService
	log             zerolog.Logger
}

func NewLocationHandler(locationService *services.LocationService, log zerolog.Logger) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
		log:             log,
	}
}

// UpdatePositionRequest is a device position report. Lat and Lng are
// pointers so that a legitimate 0 is not mistaken for "missing".
type UpdatePositionRequest struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Heading float64  `json:"heading"`
	Speed   float64  `json:"speed"`
}

// UpdatePosition handles PATCH /api/v1/vehicles/:id/position.
func (h *LocationHandler) UpdatePosition(c *gin.Context) {
	var req UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	vehicleID := middleware.GetDeviceID(c)
	if vehicleID == "" {
		vehicleID = c.Param("id")
	}

	vehicle, err := h.locationService.UpdateVehiclePosition(c.Request.Context(), vehicleID, *req.Lat, *req.Lng, req.Heading, req.Speed)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, vehicle)
}

// RegisterVehicleRequest is the body of POST /api/v1/vehicles.
type RegisterVehicleRequest struct {
	Registration string `json:"registration" binding:"required"`
	Type         string `json:"type" binding:"required"`
	RouteName    string `json:"route_name"`
}

// RegisterVehicle handles POST /api/v1/vehicles.
func (h *LocationHandler) RegisterVehicle(c *gin.Context) {
	var req RegisterVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	vehicle, err := h.locationService.RegisterVehicle(c.Request.Context(), req.Registration, entities.VehicleType(req.Type), req.RouteName)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, vehicle)
}

// GetVehicle handles GET /api/v1/vehicles/:id.
func (h *LocationHandler) GetVehicle(c *gin.Context) {
	vehicle, err := h.locationService.GetVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// DeactivateVehicle handles DELETE /api/v1/vehicles/:id. Vehicles are
// soft-deleted and stay readable through GetVehicle.
func (h *LocationHandler) DeactivateVehicle(c *gin.Context) {
	if err := h.locationService.DeactivateVehicle(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
