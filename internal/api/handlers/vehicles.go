package handlers

import (
	"net/http"

	"shuttle-backend/internal/models"
	"shuttle-backend/internal/services"
	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type VehicleHandler struct {
	vehicleService *services.VehicleService
	validator      *validator.Validate
}

func NewVehicleHandler(vehicleService *services.VehicleService) *VehicleHandler {
	return &VehicleHandler{
		vehicleService: vehicleService,
		validator:      validator.New(),
	}
}

// GetVehicles returns the snapshot of every vehicle
func (h *VehicleHandler) GetVehicles(c *gin.Context) {
	vehicles, err := h.vehicleService.ListVehicles(c.Request.Context())
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to retrieve vehicles", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicles retrieved successfully", vehicles)
}

// GetVehicle returns one vehicle snapshot
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	vehicle, err := h.vehicleService.GetVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to retrieve vehicle", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicle retrieved successfully", vehicle)
}

// RegisterVehicle adds a vehicle to the fleet
func (h *VehicleHandler) RegisterVehicle(c *gin.Context) {
	var req services.RegisterVehicleRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	vehicle, err := h.vehicleService.RegisterVehicle(c.Request.Context(), &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to register vehicle", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Vehicle registered successfully", vehicle)
}

// SubmitTelemetry records a position report. The vehicle id in the path
// wins over one in the body.
func (h *VehicleHandler) SubmitTelemetry(c *gin.Context) {
	var sample models.TelemetrySample
	if err := c.ShouldBindJSON(&sample); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	sample.VehicleID = c.Param("id")
	if err := h.validator.Struct(&sample); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	vehicle, err := h.vehicleService.SubmitTelemetry(c.Request.Context(), &sample)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to record telemetry", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Telemetry recorded", vehicle)
}

// AdjustOccupancy applies a boarding (+) or alighting (-) delta
func (h *VehicleHandler) AdjustOccupancy(c *gin.Context) {
	var req services.AdjustOccupancyRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	vehicle, err := h.vehicleService.AdjustOccupancy(c.Request.Context(), c.Param("id"), req.Delta)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to adjust occupancy", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Occupancy updated", vehicle)
}

func (h *VehicleHandler) StartTrip(c *gin.Context) {
	var req services.StartTripRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	vehicle, err := h.vehicleService.StartTrip(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to start trip", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip started", vehicle)
}

func (h *VehicleHandler) StopTrip(c *gin.Context) {
	vehicle, err := h.vehicleService.StopTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to stop trip", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip stopped", vehicle)
}

// GetTrips returns the vehicle's trip history, newest first
func (h *VehicleHandler) GetTrips(c *gin.Context) {
	trips, err := h.vehicleService.ListTrips(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		utils.ServiceErrorResponse(c, "Failed to retrieve trips", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trips retrieved successfully", trips)
}
